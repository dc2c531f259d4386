package client

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"idlegate/internal/constants"
	"idlegate/internal/logger"
	"idlegate/internal/types"
	"idlegate/internal/utils"
)

const (
	ColorReset  = constants.ColorReset
	ColorBold   = constants.ColorBold
	ColorDim    = constants.ColorDim
	ColorCyan   = constants.ColorCyan
	ColorGreen  = constants.ColorGreen
	ColorYellow = constants.ColorYellow
	ColorRed    = constants.ColorRed
	ColorPurple = constants.ColorPurple
)

const maxLogLines = 12

func PrintBanner() {
	fmt.Println()
	fmt.Printf("  %s%s%s%s %sv%s%s\n", constants.ColorBold, constants.ColorCyan, constants.AppName, constants.ColorReset, constants.ColorBold, constants.Version, constants.ColorReset)
	fmt.Printf("  %sIdle sign-out across every open tab%s\n", constants.ColorDim, constants.ColorReset)
	fmt.Println()
}

func PrintHint(text string) {
	fmt.Printf("  %s%s%s\n", ColorDim, text, ColorReset)
}

func PrintStep(number int, text string) {
	fmt.Printf("  %s%s▸%s %s\n", ColorBold, ColorCyan, ColorReset, text)
}

func PrintField(label, value, valueColor string) {
	fmt.Printf("  %s%-12s%s %s%s%s\n", ColorDim, label, ColorReset, valueColor, value, ColorReset)
}

func PrintSep() {
	fmt.Printf("  %s%s%s\n", ColorDim, strings.Repeat("─", 50), ColorReset)
}

// View is what the terminal tab shows.
type View struct {
	Server      string
	UserID      string
	TabID       string
	Route       string
	Phase       string
	SecondsLeft int
	Active      bool
	Hidden      bool
	IdleMax     time.Duration
	LogPath     string
}

// Apply folds a state message into the view.
func (v *View) Apply(msg ServerMessage) {
	v.TabID = msg.TabID
	v.Phase = msg.Phase
	v.SecondsLeft = msg.SecondsLeft
	v.Active = msg.Active
	v.Hidden = msg.Hidden
	if msg.Route != "" {
		v.Route = msg.Route
	}
	if msg.IdleMaxMs > 0 {
		v.IdleMax = time.Duration(msg.IdleMaxMs) * time.Millisecond
	}
}

func readLines(out chan<- string) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- sc.Text()
	}
	close(out)
}

// StartTUI runs the tab until the server signs it out, the user quits or
// the connection drops.
func StartTUI(tc *TabConn, view View, log *logger.Logger) {
	fmt.Print("\033[?25l")
	fmt.Print("\033[2J")

	lines := make(chan string, 8)
	go readLines(lines)

	logBuffer := make([]string, 0, maxLogLines)
	addLog := func(line string) {
		logBuffer = append(logBuffer, strings.TrimSuffix(line, "\n"))
		if len(logBuffer) > maxLogLines {
			logBuffer = logBuffer[1:]
		}
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	sigChan := make(chan os.Signal, 1)
	winchChan := setupSignals(sigChan)

	var farewell string
	defer func() {
		ticker.Stop()
		tc.Close()
		fmt.Print("\033[?25h")
		fmt.Println()
		if farewell == "" {
			farewell = "disconnected"
		}
		fmt.Printf("  %s● %s%s\n", ColorRed, farewell, ColorReset)
	}()

	for {
		select {
		case msg, ok := <-tc.Messages():
			if !ok {
				if err := tc.Err(); err != nil {
					log.LogError("in", err)
				}
				return
			}
			switch msg.Type {
			case types.TabMsgState:
				prev := view.Phase
				view.Apply(msg)
				log.LogState(msg.Phase, msg.SecondsLeft, view.Route)
				if prev != msg.Phase {
					addLog(utils.FormatLog("", msg.Phase, view.Route))
				}
			case types.TabMsgNavigate:
				view.Route = msg.Route
				log.LogNavigate(msg.Route)
				addLog(utils.FormatLog("🚪", "navigate", msg.Route))
				RenderTUI(view, logBuffer)
				farewell = "signed out, back to " + msg.Route
				if msg.Reason != "" {
					farewell = "signed out (" + msg.Reason + "), back to " + msg.Route
				}
				return
			case types.TabMsgError:
				log.LogEvent("server error: " + msg.Message)
				addLog(utils.FormatLog("⚠️", "error", msg.Message))
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			msg, quit, valid := ParseCommand(line)
			if quit {
				farewell = "closed"
				return
			}
			if !valid {
				addLog(utils.FormatLog("❓", "input", line))
				continue
			}
			if err := tc.Send(msg); err != nil {
				log.LogError("out", err)
				return
			}
			log.LogSent(msg.Type, msg.Kind+msg.Route)
			if msg.Type == types.TabMsgRoute {
				view.Route = msg.Route
			}

		case <-ticker.C:
			if handleWinch(winchChan) {
				fmt.Print("\033[2J")
			}
			RenderTUI(view, logBuffer)

		case <-sigChan:
			farewell = "closed"
			return
		}
	}
}

func RenderTUI(v View, logs []string) {
	fmt.Print("\033[H")

	fmt.Printf("  %s%s%s%s %sv%s%s\n", constants.ColorBold, constants.ColorCyan, constants.AppName, constants.ColorReset, constants.ColorBold, constants.Version, constants.ColorReset)
	fmt.Printf("  %sIdle sign-out across every open tab%s\n", constants.ColorDim, constants.ColorReset)
	fmt.Println()

	phaseColor := ColorGreen
	phase := v.Phase
	switch v.Phase {
	case "warning":
		phaseColor = ColorYellow
		phase = fmt.Sprintf("warning, signing out in %s (press s)", utils.FormatCountdown(v.SecondsLeft))
	case "logged_out":
		phaseColor = ColorRed
	}
	if !v.Active && v.Phase != "logged_out" {
		phaseColor = ColorDim
		phase = "suspended"
	}

	PrintField("server", v.Server, ColorReset)
	PrintField("user", v.UserID, ColorCyan)
	PrintField("tab", v.TabID, ColorDim)
	PrintField("route", v.Route, ColorPurple)
	fmt.Printf("\033[K")
	PrintField("status", phase, phaseColor)
	if v.IdleMax > 0 {
		PrintField("idle max", utils.FormatDuration(v.IdleMax), ColorReset)
	}
	visibility := "visible"
	if v.Hidden {
		visibility = "hidden"
	}
	PrintField("tab is", visibility, ColorReset)
	if v.LogPath != "" {
		PrintField("logs", v.LogPath, ColorDim)
	}

	fmt.Println()
	PrintHint("enter: activity   s: stay signed in   h/v: hide/show   r /path: go   q: quit")
	fmt.Printf("  %s%s%s\n", ColorDim, strings.Repeat("─", 50), ColorReset)

	for _, line := range logs {
		fmt.Printf("\033[K%s\n", line)
	}

	fmt.Print("\033[J")
}
