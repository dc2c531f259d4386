package client

import (
	"fmt"
	"os"
	"strings"

	"idlegate/internal/constants"
	"idlegate/internal/logger"
	"idlegate/internal/utils"
)

// NormalizeServerURL adds a scheme when missing and reports whether TLS
// verification should be skipped (self-signed localhost certificates).
func NormalizeServerURL(raw string) (string, bool) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	skip := strings.HasPrefix(raw, "https://localhost") || strings.HasPrefix(raw, "https://127.0.0.1")
	return raw, skip
}

// Start signs in, opens one tab and runs the terminal view.
func Start(userID, route string) {
	serverURL := utils.GetEnv("IDLEGATE_SERVER", constants.DefaultServerURL)
	serverURL, skipTLSVerify := NormalizeServerURL(serverURL)

	PrintBanner()

	userID, route = RunLoginWizard(userID, route)

	PrintSep()
	fmt.Printf("  %sConnecting...%s\n", ColorDim, ColorReset)

	tc, err := Dial(serverURL, userID, route, skipTLSVerify)
	if err != nil {
		fmt.Println()
		fmt.Printf("   %sFailed to connect: %s%s\n", ColorRed, err.Error(), ColorReset)
		fmt.Println()
		os.Exit(1)
	}

	tabLog, err := logger.NewLogger(tc.Session.SessionID)
	if err != nil {
		PrintHint(ColorYellow + "event log disabled: " + err.Error() + ColorReset)
	}
	defer tabLog.Close()
	tabLog.LogEvent(fmt.Sprintf("signed in as %s on %s", userID, route))

	StartTUI(tc, View{
		Server:  serverURL,
		UserID:  userID,
		Route:   route,
		Phase:   "active",
		Active:  true,
		LogPath: tabLog.GetLogPath(),
	}, tabLog)
}
