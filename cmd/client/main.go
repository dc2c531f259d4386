package main

import (
	"flag"
	"fmt"
	"os"

	"idlegate/internal/client"
	"idlegate/internal/constants"
)

func main() {
	flag.Usage = func() {
		fmt.Println()
		fmt.Printf("  %s%s%s%s %sv%s%s\n", constants.ColorBold, constants.ColorCyan, constants.AppName, constants.ColorReset, constants.ColorBold, constants.Version, constants.ColorReset)
		fmt.Println()
		fmt.Printf("  %sUsage:%s\n", constants.ColorBold, constants.ColorReset)
		fmt.Printf("    idlegate-tab %s[-user alice] [-route /dashboard]%s\n", constants.ColorCyan, constants.ColorReset)
		fmt.Printf("    %sserver from IDLEGATE_SERVER (default %s)%s\n", constants.ColorDim, constants.DefaultServerURL, constants.ColorReset)
		fmt.Println()
		fmt.Printf("  %sFlags:%s\n", constants.ColorBold, constants.ColorReset)
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Printf("    -%-12s %s\n", f.Name, f.Usage)
		})
		fmt.Println()
	}

	versionFlag := flag.Bool("version", false, "show version")
	userFlag := flag.String("user", "", "user id to sign in as")
	routeFlag := flag.String("route", "", "route the tab opens on")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("  %s%s%s%s %sv%s%s\n", constants.ColorBold, constants.ColorCyan, constants.AppName, constants.ColorReset, constants.ColorBold, constants.Version, constants.ColorReset)
		os.Exit(0)
	}

	client.Start(*userFlag, *routeFlag)
}
