package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/IlyasAtabaev731/nickpay/internal/domain/apperr"
	"github.com/IlyasAtabaev731/nickpay/internal/domain/models"
	"github.com/IlyasAtabaev731/nickpay/internal/wallet"
)

const timeLayout = "2006-01-02 15:04"

var errSignedOut = errors.New("not signed in, run `nickpay login` first")

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := newFlagSet("signup", a.out)
	name := fs.String("name", "", "full name")
	document := fs.String("document", "", "document number")
	nickname := fs.String("nickname", "", "nickname other users send money to")
	password := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *name, err = a.in.valueOr(*name, "Name"); err != nil {
		return err
	}
	if *document, err = a.in.valueOr(*document, "Document"); err != nil {
		return err
	}
	if *nickname, err = a.in.valueOr(*nickname, "Nickname"); err != nil {
		return err
	}
	if *password == "" {
		if *password, err = a.in.password(); err != nil {
			return err
		}
	}

	sess, err := a.session.SignUp(ctx, *name, *document, *nickname, *password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Account created. Signed in as %s (@%s)\n", sess.User.Name, sess.User.Nickname)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login", a.out)
	nickname := fs.String("nickname", "", "nickname")
	password := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *nickname == "" && fs.NArg() > 0 {
		*nickname = fs.Arg(0)
	}

	var err error
	if *nickname, err = a.in.valueOr(*nickname, "Nickname"); err != nil {
		return err
	}
	if *password == "" {
		if *password, err = a.in.password(); err != nil {
			return err
		}
	}

	sess, err := a.session.SignIn(ctx, *nickname, *password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Signed in as %s (@%s)\n", sess.User.Name, sess.User.Nickname)
	return nil
}

func (a *app) logout(ctx context.Context, args []string) error {
	fs := newFlagSet("logout", a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.session.SignOut(ctx)
	a.wallet.Reset()

	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *app) whoami(args []string) error {
	fs := newFlagSet("whoami", a.out)
	share := fs.Bool("share", false, "print a message inviting others to send you money")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, ok := a.session.Current()
	if !ok {
		return errSignedOut
	}

	if *share {
		fmt.Fprintln(a.out, wallet.ShareMessage(sess.User))
		return nil
	}

	fmt.Fprintf(a.out, "%s (@%s)\nid: %s\n", sess.User.Name, sess.User.Nickname, sess.User.ID)
	if !sess.ExpiresAt.IsZero() {
		fmt.Fprintf(a.out, "session expires: %s\n", sess.ExpiresAt.Local().Format(timeLayout))
	}
	return nil
}

func (a *app) balance(ctx context.Context, args []string) error {
	fs := newFlagSet("balance", a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, ok := a.session.Current(); !ok {
		return errSignedOut
	}

	a.wallet.RefreshBalance(ctx)

	balance, ok := a.wallet.Balance()
	if !ok {
		fmt.Fprintln(a.out, "Balance: unavailable")
		return nil
	}

	fmt.Fprintf(a.out, "Balance: %s\n", balance.StringFixed(2))
	return nil
}

func (a *app) showFeed(ctx context.Context, args []string) error {
	fs := newFlagSet("feed", a.out)
	pages := fs.Int("pages", 1, "number of pages to load")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, ok := a.session.Current(); !ok {
		return errSignedOut
	}

	a.feed.Refresh(ctx)
	for i := 1; i < *pages; i++ {
		if !a.feed.LoadMore(ctx) {
			break
		}
	}

	if balance, ok := a.wallet.Balance(); ok {
		fmt.Fprintf(a.out, "Balance: %s\n\n", balance.StringFixed(2))
	}

	state := a.feed.State()
	if state.CurrentPage == 0 {
		fmt.Fprintln(a.out, "Transactions could not be loaded")
		return nil
	}
	if len(state.Items) == 0 {
		fmt.Fprintln(a.out, "No transactions yet")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, tx := range state.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tx.ID, formatTime(tx.CreatedAt.Time), tx.Summary(), tx.SignedValue())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if state.HasMore {
		fmt.Fprintf(a.out, "\nMore transactions available, use -pages %d\n", state.CurrentPage+1)
	}
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	fs := newFlagSet("show", a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, ok := a.session.Current(); !ok {
		return errSignedOut
	}

	tx, err := a.wallet.Transaction(ctx, models.ID(fs.Arg(0)))
	if err != nil {
		return withLoginHint(err)
	}

	printTransaction(a.out, tx)
	return nil
}

func (a *app) send(ctx context.Context, args []string) error {
	fs := newFlagSet("send", a.out)
	to := fs.String("to", "", "receiver nickname")
	amount := fs.String("amount", "", "amount, e.g. 10,50")
	description := fs.String("description", "", "optional note")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, ok := a.session.Current(); !ok {
		return errSignedOut
	}

	tx, err := a.wallet.SendMoney(ctx, *to, *amount, *description)
	if err != nil {
		return withLoginHint(err)
	}

	fmt.Fprintln(a.out, "Transfer sent")
	printTransaction(a.out, tx)
	return nil
}

func printTransaction(w io.Writer, tx *models.Transaction) {
	counterparty := "unknown"
	if cp := tx.Counterparty(); cp != nil && cp.Nickname != "" {
		counterparty = "@" + cp.Nickname
	}
	direction := "to"
	if tx.IsIncome() {
		direction = "from"
	}

	fmt.Fprintf(w, "id:          %s\n", tx.ID)
	fmt.Fprintf(w, "value:       %s\n", tx.SignedValue())
	fmt.Fprintf(w, "%-12s %s\n", direction+":", counterparty)
	fmt.Fprintf(w, "date:        %s\n", formatTime(tx.CreatedAt.Time))
	if d := strings.TrimSpace(tx.Description); d != "" {
		fmt.Fprintf(w, "description: %s\n", d)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func withLoginHint(err error) error {
	if apperr.IsUnauthorized(err) {
		return fmt.Errorf("%w (session expired? run `nickpay login`)", err)
	}
	return err
}
