package client

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"idlegate/internal/constants"
	"idlegate/internal/types"
	"idlegate/internal/utils"
)

// ServerMessage is any message the server sends to a tab.
type ServerMessage struct {
	Type        string `json:"type"`
	TabID       string `json:"tab_id"`
	Phase       string `json:"phase"`
	SecondsLeft int    `json:"seconds_left"`
	Active      bool   `json:"active"`
	Hidden      bool   `json:"hidden"`
	Route       string `json:"route"`
	IdleMaxMs   int64  `json:"idle_max_ms"`
	LogoutAtMs  int64  `json:"logout_at_ms"`
	MsLeft      int64  `json:"ms_before_logout"`
	Reason      string `json:"reason"`
	Message     string `json:"message"`
}

// TabConn is one signed-in tab talking to the server.
type TabConn struct {
	Session types.SessionResponse

	conn     *websocket.Conn
	messages chan ServerMessage
	errc     chan error
	writeMu  sync.Mutex
	once     sync.Once
}

func newHTTPClient(skipTLSVerify bool) (*http.Client, http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if skipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Jar: jar, Transport: transport, Timeout: 10 * time.Second}, jar, nil
}

// Login signs userID in and returns a client carrying the session cookie.
func Login(serverURL, userID string, skipTLSVerify bool) (*http.Client, types.SessionResponse, error) {
	var out types.SessionResponse

	httpClient, _, err := newHTTPClient(skipTLSVerify)
	if err != nil {
		return nil, out, err
	}

	body, err := json.Marshal(types.LoginRequest{UserID: userID})
	if err != nil {
		return nil, out, err
	}
	resp, err := httpClient.Post(serverURL+constants.EndpointLogin, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, out, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, out, fmt.Errorf("login failed (status %d): %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, out, fmt.Errorf("decode login response: %w", err)
	}
	return httpClient, out, nil
}

// Dial signs in and opens a tab on route.
func Dial(serverURL, userID, route string, skipTLSVerify bool) (*TabConn, error) {
	httpClient, sess, err := Login(serverURL, userID, skipTLSVerify)
	if err != nil {
		return nil, err
	}

	wsURL, err := utils.ConstructWSURL(serverURL, constants.EndpointTabWS, url.Values{"route": {route}})
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}

	dialer := websocket.Dialer{
		Jar:              httpClient.Jar,
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   constants.WSBufferSize,
		WriteBufferSize:  constants.WSBufferSize,
	}
	if skipTLSVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	conn, resp, err := dialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("open tab (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("open tab: %w", err)
	}

	tc := &TabConn{
		Session:  sess,
		conn:     conn,
		messages: make(chan ServerMessage, 32),
		errc:     make(chan error, 1),
	}
	go tc.readLoop()
	return tc, nil
}

func (tc *TabConn) readLoop() {
	defer close(tc.messages)
	for {
		var msg ServerMessage
		if err := tc.conn.ReadJSON(&msg); err != nil {
			tc.errc <- err
			return
		}
		tc.messages <- msg
	}
}

// Messages is closed when the connection ends; Err then holds the reason.
func (tc *TabConn) Messages() <-chan ServerMessage {
	return tc.messages
}

func (tc *TabConn) Err() error {
	select {
	case err := <-tc.errc:
		return err
	default:
		return nil
	}
}

func (tc *TabConn) Send(msg types.TabMessage) error {
	tc.writeMu.Lock()
	defer tc.writeMu.Unlock()
	tc.conn.SetWriteDeadline(time.Now().Add(constants.WSWriteTimeout))
	return tc.conn.WriteJSON(msg)
}

func (tc *TabConn) Close() error {
	var err error
	tc.once.Do(func() {
		tc.writeMu.Lock()
		tc.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(constants.WSWriteTimeout))
		tc.writeMu.Unlock()
		err = tc.conn.Close()
	})
	return err
}
