// Command play runs Speed Color sessions in the terminal and submits the results to the API.
// Every Enter press is a click.
package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/victornm/speedcolor/internal/api"
	"github.com/victornm/speedcolor/internal/client"
	"github.com/victornm/speedcolor/internal/game"
	"github.com/victornm/speedcolor/internal/telemetry"
)

func main() {
	var (
		baseURL  = flag.String("api", "http://localhost:8080", "API base URL")
		email    = flag.String("email", "", "account email")
		password = flag.String("password", "", "account password")
		name     = flag.String("name", "", "display name used when registering")
		register = flag.Bool("register", false, "create the account when login fails")
	)
	flag.Parse()

	slog.SetDefault(telemetry.NewLogger(os.Stderr, telemetry.LogConfig{Level: "warn"}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Config{BaseURL: *baseURL})
	if err := signIn(ctx, c, *email, *password, *name, *register); err != nil {
		fmt.Fprintf(os.Stderr, "sign in: %v\n", err)
		os.Exit(1)
	}

	if err := play(ctx, c); err != nil && !stderrors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "play: %v\n", err)
		os.Exit(1)
	}
}

func signIn(ctx context.Context, c *client.Client, email, password, name string, register bool) error {
	_, err := c.Login(ctx, api.LoginRequest{Email: email, Password: password})

	var e *client.Error
	if err == nil || !register || !stderrors.As(err, &e) || e.StatusCode != http.StatusUnauthorized {
		return err
	}

	req := api.RegisterRequest{Email: email, Password: password}
	if name != "" {
		req.Name = &name
	}

	_, err = c.Register(ctx, req)
	return err
}

func play(ctx context.Context, c *client.Client) error {
	input := make(chan struct{})
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			input <- struct{}{}
		}
		close(input)
	}()

	r := game.NewRunner(game.Config{
		Submitter: c,
		OnChange:  render,
		OnSubmit: func(res game.Result, err error) {
			if err != nil {
				fmt.Printf("could not save score %d: %v\n", res.Score, err)
				return
			}
			fmt.Printf("score %d saved\n", res.Score)
		},
	})
	defer r.Close()

	s := game.New()
	for {
		fmt.Println("Press Enter to start, Ctrl-C to quit.")
		if !wait(ctx, input) {
			return ctx.Err()
		}

		var err error
		s, err = r.Play(ctx, s, input)
		if err != nil {
			return err
		}

		r.Wait()
		fmt.Printf("Game over: %d points, %d/%d correct clicks.\n", s.Score, s.CorrectClicks, s.TotalClicks)

		if err := printLeaderboard(ctx, c); err != nil {
			fmt.Printf("could not load leaderboard: %v\n", err)
		}
	}
}

func wait(ctx context.Context, input <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case _, ok := <-input:
		return ok
	}
}

func render(s game.State) {
	switch s.Status {
	case game.StatusPlaying:
		marker := " "
		if s.Current == s.Target {
			marker = "*"
		}
		fmt.Printf("\r[%2ds] target %-6s shown %-6s %s score %-6d", s.TimeLeft, s.Target, s.Current, marker, s.Score)
	case game.StatusFinished:
		fmt.Println()
	}
}

func printLeaderboard(ctx context.Context, c *client.Client) error {
	entries, err := c.Leaderboard(ctx, 5)
	if err != nil {
		return err
	}

	fmt.Println("Leaderboard:")
	for i, e := range entries {
		who := e.User.Email
		if e.User.Name != nil {
			who = *e.User.Name
		}
		fmt.Printf("%d. %-24s %6d (%d games)\n", i+1, who, e.BestScore, e.GamesPlayed)
	}

	return nil
}
