package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"

	"github.com/srinivas112004/go-employee-portal/credentials"
	"github.com/srinivas112004/go-employee-portal/endpoints"
	"github.com/srinivas112004/go-employee-portal/internal/config"
	"github.com/srinivas112004/go-employee-portal/internal/obs"
	"github.com/srinivas112004/go-employee-portal/portal"
	"github.com/srinivas112004/go-employee-portal/presence"
	"github.com/srinivas112004/go-employee-portal/rest"
	"github.com/srinivas112004/go-employee-portal/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running portal client: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	var (
		email    = flag.String("email", os.Getenv("PORTAL_EMAIL"), "sign-in email")
		password = flag.String("password", os.Getenv("PORTAL_PASSWORD"), "sign-in password")
		otp      = flag.String("otp", "", "two-factor code, when required")
	)
	flag.Parse()

	c := config.New()
	displayAppname(c.GetAppName())
	obs.Init()

	storage, err := credentials.NewFileStorage(c.GetDataFolder())
	if err != nil {
		return err
	}
	store := credentials.NewStore(storage)

	client, err := rest.New(c, store, rest.WithOnAuthExpired(func() {
		log.Printf("Session expired, please sign in again\n")
	}))
	if err != nil {
		return err
	}

	resolver, err := endpoints.NewResolver(client)
	if err != nil {
		return err
	}

	sess, err := session.NewManager(client, resolver, store)
	if err != nil {
		return err
	}

	ctx := context.Background()

	user, err := establishSession(ctx, sess, *email, *password, *otp)
	if err != nil {
		return err
	}
	log.Printf("Signed in as %s (%s)\n", user.FullName, user.Role)

	features, err := portal.NewService(client, resolver)
	if err != nil {
		return err
	}
	showDashboard(ctx, features)

	channel, err := presence.NewChannel(c, store, resolver)
	if err != nil {
		return err
	}
	channel.Subscribe(func(snapshot presence.Snapshot) {
		names := make([]string, 0, len(snapshot.Users))
		for _, entry := range snapshot.Users {
			names = append(names, entry.DisplayName)
		}
		log.Printf("Online (%d, socket=%t): %v\n", len(names), snapshot.Connected, names)
	})
	channel.Connect()

	waitForStopSignal()
	channel.Close()
	sess.SignOut(ctx)
	return nil
}

// establishSession restores a stored session when possible, otherwise
// signs in with the given credentials, completing a second factor when
// the server asks for one.
func establishSession(ctx context.Context, sess *session.Manager, email, password, otp string) (*session.Identity, error) {
	if err := sess.Start(ctx); err == nil {
		if state := sess.State(); state.Authenticated {
			return state.User, nil
		}
	}

	if email == "" || password == "" {
		return nil, errors.New("no stored session; -email and -password are required")
	}

	user, err := sess.SignIn(ctx, email, password)
	if errors.Is(err, session.TwoFactorRequiredErr) {
		if otp == "" {
			return nil, errors.New("two-factor code required; pass -otp")
		}
		return sess.SignInWithTwoFactor(ctx, email, password, otp)
	}
	return user, err
}

func showDashboard(ctx context.Context, features *portal.Service) {
	if announcements, err := features.Announcements(ctx); err == nil {
		for _, a := range announcements {
			log.Printf("📣 %s\n", a.Title)
		}
	}
	if tasks, err := features.Tasks(ctx); err == nil {
		for _, t := range tasks {
			status := " "
			if t.Done {
				status = "x"
			}
			log.Printf("[%s] %s (due %s)\n", status, t.Title, t.DueDate)
		}
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
