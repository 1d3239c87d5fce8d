package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/atinyakov/HubViewer/internal/models"
)

// readPassword reads a line from a terminal without echo.
var readPassword = term.ReadPassword

// ErrPromptAborted is returned when input ends before all fields are read.
var ErrPromptAborted = errors.New("input ended before all credentials were entered")

// PromptCredentials asks on out for every field of preset that is still
// empty and reads the answers from in. A token answer starting with "@" is
// read from the named file, so tokens need not be typed or kept in shell
// history. When in is a terminal the token is read without echo.
func PromptCredentials(in io.Reader, out io.Writer, preset models.Credentials) (models.Credentials, error) {
	scanner := bufio.NewScanner(in)
	creds := preset

	ask := func(label string, dst *string) error {
		if *dst != "" {
			return nil
		}
		fmt.Fprintf(out, "Enter %s: ", label)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return ErrPromptAborted
		}
		*dst = strings.TrimSpace(scanner.Text())
		return nil
	}

	if err := ask("organization", &creds.Organization); err != nil {
		return models.Credentials{}, err
	}
	if err := ask("user", &creds.User); err != nil {
		return models.Credentials{}, err
	}
	if f, ok := in.(*os.File); ok && creds.Token == "" && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Enter access token (or @file): ")
		secret, err := readPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return models.Credentials{}, fmt.Errorf("failed to read token: %w", err)
		}
		creds.Token = strings.TrimSpace(string(secret))
	} else if err := ask("access token (or @file)", &creds.Token); err != nil {
		return models.Credentials{}, err
	}

	if path, ok := strings.CutPrefix(creds.Token, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return models.Credentials{}, fmt.Errorf("failed to read token file %q: %w", path, err)
		}
		creds.Token = strings.TrimSpace(string(data))
	}

	if creds.Organization == "" || creds.User == "" || creds.Token == "" {
		return models.Credentials{}, errors.New("organization, user and token are required")
	}
	return creds, nil
}
