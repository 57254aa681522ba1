// File: internal/workflow/login.go
package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Selectors of the login form fronting the dashboard. The form itself is out
// of our hands; these are the stable IDs it exposes.
const (
	loginEmailMarker  = `input[type="email"]`
	loginUserInput    = `#userNameInput`
	loginPassInput    = `#passwordInput`
	loginSubmitButton = `#submitButton`
)

// maybeLogin submits credentials when the login form is present. An already
// authenticated session shows no form and nothing is done.
func (e *Engine) maybeLogin(ctx context.Context) error {
	if e.loggedIn {
		return nil
	}

	marker := e.waiter.ForAnyElement(ctx, []string{loginEmailMarker, loginUserInput}, e.cfg.Wait.Element)
	if marker == "" {
		e.logger.Info("No login form detected, session already authenticated.")
		e.loggedIn = true
		return nil
	}
	e.logger.Info("Login form detected, signing in.", zap.String("marker", marker))

	if e.creds.Username == "" || e.creds.Password == "" {
		return fmt.Errorf("login form shown but no credentials were provided")
	}

	if err := e.actions.TypeText(ctx, loginUserInput, e.creds.Username); err != nil {
		return fmt.Errorf("entering username: %w", err)
	}
	if err := e.actions.TypeText(ctx, loginPassInput, e.creds.Password); err != nil {
		return fmt.Errorf("entering password: %w", err)
	}
	if err := e.actions.Click(ctx, loginSubmitButton); err != nil {
		return fmt.Errorf("submitting login: %w", err)
	}

	if !e.waiter.ForPageReady(ctx) {
		e.logger.Warn("Post-login page readiness not confirmed.")
		e.waiter.Sleep(ctx, e.cfg.Wait.SettleMedium)
	}

	e.loggedIn = true
	e.logger.Info("Login complete.")
	return nil
}
