// Command serverfront はピアレンディングのコアAPIサーバーとワーカーを起動する。
//
// 使い方:
//
//	serverfront [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/gncompass/serverfront/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "serverfront: %v\n", err)
		os.Exit(1)
	}
}
