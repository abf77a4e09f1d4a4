package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/hakraj/exboard/internal/model"
	"github.com/hakraj/exboard/internal/portal"
	"golang.org/x/term"
)

func main() {
	var serverURL string
	flag.StringVar(&serverURL, "server", "http://localhost:8080", "ExBoard server URL")
	flag.Parse()

	sessionPath := filepath.Join(os.TempDir(), "exboard-session.json")
	session := portal.NewSession(portal.NewFileStorage(sessionPath))
	client := portal.NewClient(serverURL, session)

	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	if !session.Authenticated() {
		if err := login(ctx, client, reader); err != nil {
			fmt.Printf("Login failed: %v\n", err)
			os.Exit(1)
		}
	}
	identity := session.Identity()
	// Only students sit exams; an admin session lands on the dashboard
	// side of the portal instead.
	if decision := portal.Authorize(session.Authenticated(), identity.Role, []string{string(model.RoleStudent)}); !decision.Allow {
		fmt.Printf("Account %s cannot take exams. Use the web portal at %s.\n", identity.RegNo, decision.Redirect)
		os.Exit(1)
	}
	fmt.Printf("Signed in as %s (%s)\n", identity.Name, identity.RegNo)

	exam, err := chooseExam(ctx, client, reader)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := takeExam(ctx, client, reader, exam); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func login(ctx context.Context, client *portal.Client, reader *bufio.Reader) error {
	fmt.Print("Registration number: ")
	regNo, _ := reader.ReadString('\n')
	regNo = strings.TrimSpace(regNo)

	fmt.Print("Password (hidden): ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return err
	}

	_, err = client.Login(ctx, regNo, strings.TrimSpace(string(passwordBytes)))
	return err
}

func chooseExam(ctx context.Context, client *portal.Client, reader *bufio.Reader) (*model.Exam, error) {
	exams, err := client.ListExams(ctx)
	if err != nil {
		return nil, err
	}
	if len(exams) == 0 {
		return nil, fmt.Errorf("no published exams available")
	}

	fmt.Println("\nAvailable exams:")
	for i, e := range exams {
		fmt.Printf("  [%d] %s (%d min)\n", i+1, e.Title, e.TimeLimitMinutes)
	}

	fmt.Print("Pick an exam: ")
	raw, _ := reader.ReadString('\n')
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 || n > len(exams) {
		return nil, fmt.Errorf("invalid choice")
	}
	return &exams[n-1], nil
}

func takeExam(ctx context.Context, client *portal.Client, reader *bufio.Reader, exam *model.Exam) error {
	fmt.Printf("\nStarting %q. Re-enter your password to begin.\n", exam.Title)
	fmt.Print("Password (hidden): ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return err
	}

	started, err := client.StartAttempt(ctx, exam.ID, strings.TrimSpace(string(passwordBytes)))
	if err != nil {
		return err
	}

	taker, err := portal.NewTaker(client, &started.Attempt)
	if err != nil {
		return err
	}

	// Countdown runs beside the question loop; expiry finalizes exactly
	// once even if the student submits at the same moment.
	examCtx, cancelCountdown := context.WithCancel(ctx)
	defer cancelCountdown()

	countdown := portal.NewCountdown(started.Attempt.StartedAt, started.Attempt.Exam.TimeLimit, nil)
	go watchExpiry(examCtx, countdown, taker)

	fmt.Printf("\nTime limit: %s. Answers sync when you move between questions.\n",
		portal.FormatClock(countdown.Remaining()))

	for !taker.Submitted() {
		q := taker.Question()
		fmt.Printf("\n[%s] Question %d/%d — %d answered\n",
			portal.FormatClock(countdown.Remaining()), taker.Index()+1, taker.Count(), taker.AnsweredCount())
		fmt.Println(q.Text)
		for i, opt := range q.DisplayOptions() {
			marker := " "
			if current, ok := taker.Displayed(q.ID); ok && current == opt {
				marker = "*"
			}
			fmt.Printf("  %s %d) %s\n", marker, i+1, opt)
		}

		fmt.Print("> (option number, 'p'rev, 'n'ext, 'g <num>' jump, 'submit'): ")
		raw, _ := reader.ReadString('\n')
		if taker.Submitted() {
			break
		}
		input := strings.TrimSpace(raw)

		switch {
		case input == "p":
			if !taker.CanPrev() {
				fmt.Println("Already at the first question.")
				continue
			}
			if err := taker.Prev(ctx); err != nil {
				fmt.Printf("Answer sync failed: %v\n", err)
			}
		case input == "n":
			if !taker.CanNext() {
				fmt.Println("Already at the last question.")
				continue
			}
			if err := taker.Next(ctx); err != nil {
				fmt.Printf("Answer sync failed: %v\n", err)
			}
		case strings.HasPrefix(input, "g "):
			k, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(input, "g ")))
			if err != nil {
				fmt.Println("Invalid question number.")
				continue
			}
			if err := taker.Jump(ctx, k-1); err != nil {
				fmt.Printf("Answer sync failed: %v\n", err)
			}
		case input == "submit":
			// Flush the active question before finalizing.
			if err := taker.Jump(ctx, taker.Index()); err != nil {
				fmt.Printf("Answer sync failed: %v\n", err)
			}
			if _, err := taker.Finalize(ctx); err != nil {
				fmt.Printf("Submission failed: %v\n", err)
			}
		default:
			n, err := strconv.Atoi(input)
			opts := q.DisplayOptions()
			if err != nil || n < 1 || n > len(opts) {
				fmt.Println("Unrecognized input.")
				continue
			}
			taker.Select(opts[n-1])
		}
	}

	cancelCountdown()
	fmt.Println("\nExam submitted. Returning to the dashboard.")
	return nil
}

// watchExpiry runs the countdown and finalizes the attempt the moment it
// expires. Submitting from here rather than signaling the input loop means
// a student idling at the prompt is still submitted on time; Finalize
// tolerates racing a manual submit.
func watchExpiry(ctx context.Context, countdown *portal.Countdown, taker *portal.Taker) {
	countdown.Run(ctx, nil, func() {
		if taker.Submitted() {
			return
		}
		fmt.Println("\nTime is up. Submitting...")
		if _, err := taker.Finalize(ctx); err != nil && !errors.Is(err, portal.ErrSubmitInFlight) {
			fmt.Printf("Automatic submission failed: %v. Type 'submit' to retry.\n", err)
		}
	})
}
