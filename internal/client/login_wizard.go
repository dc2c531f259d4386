package client

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"idlegate/internal/constants"
)

// RunLoginWizard asks for whatever the flags left out.
func RunLoginWizard(userID, route string) (string, string) {
	reader := bufio.NewReader(os.Stdin)

	if userID == "" {
		PrintStep(1, "Sign in")
		fmt.Printf("  %sUser id:%s ", constants.ColorBold, constants.ColorReset)
		line, _ := reader.ReadString('\n')
		userID = strings.TrimSpace(line)
		fmt.Println()
	}

	if route == "" {
		PrintStep(2, "Page to open")
		fmt.Printf("  %sRoute [/dashboard]:%s ", constants.ColorBold, constants.ColorReset)
		line, _ := reader.ReadString('\n')
		route = strings.TrimSpace(line)
		if route == "" {
			route = "/dashboard"
		}
		if !strings.HasPrefix(route, "/") {
			route = "/" + route
			PrintHint("-> " + route)
		}
		fmt.Println()
	}

	return userID, route
}
