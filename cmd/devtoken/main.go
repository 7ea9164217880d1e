// devtoken はローカル確認用のアクセストークンを標準出力に出す。
//
//	go run ./cmd/devtoken -user 2 -role USER
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/middleware"
)

func main() {
	userID := flag.Int64("user", 2, "user id (sub)")
	role := flag.String("role", string(model.RoleUser), "USER or ADMIN")
	tv := flag.Int("tv", 0, "token version")
	ttl := flag.Duration("ttl", time.Hour, "lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tok, err := middleware.SignAccessToken(cfg.JWTSecret, *userID, model.Role(strings.ToUpper(*role)), *tv, time.Now(), *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
