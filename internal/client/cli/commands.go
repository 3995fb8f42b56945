package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/paymentapi/internal/client/client"
	"github.com/dmitrijs2005/paymentapi/internal/common"
)

// report prints err in a form fit for the terminal and returns it.
func (a *App) report(op string, err error) error {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr) && len(apiErr.Errors) > 0:
		fmt.Fprintf(a.out, "%s failed: %s\n", op, apiErr.Errors[0])
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintf(a.out, "%s failed: server unavailable\n", op)
	case errors.Is(err, client.ErrNoSession):
		fmt.Fprintf(a.out, "%s failed: not logged in\n", op)
	default:
		fmt.Fprintf(a.out, "%s failed: %v\n", op, err)
	}
	return err
}

func (a *App) Register(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := a.password()
	if err != nil {
		return err
	}

	msg, err := a.authService.Register(ctx, username, email, password)
	if err != nil {
		return a.report("register", err)
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := a.password()
	if err != nil {
		return err
	}

	msg, err := a.authService.Login(ctx, email, password)
	if err != nil {
		return a.report("login", err)
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.authService.Refresh(ctx); err != nil {
		return a.report("refresh", err)
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return a.report("logout", err)
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Revoke(ctx context.Context) error {
	if err := a.authService.Revoke(ctx); err != nil {
		return a.report("revoke", err)
	}
	fmt.Fprintln(a.out, "Refresh token revoked")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	s := a.authService.Current()
	if !s.Valid() {
		fmt.Fprintf(a.out, "mode: %s, not logged in\n", a.Mode())
		return nil
	}
	fmt.Fprintf(a.out, "mode: %s, user: %s (%s), session saved %s\n",
		a.Mode(), s.Email, s.UserID, s.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func (a *App) password() (string, error) {
	pw, err := GetPassword(a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}
