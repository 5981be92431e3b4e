// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ui is the user-interaction collaborator: prompts, choices,
// credentials, transfer progress and warnings.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pterm/pterm"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/log"
	"github.com/walteh/updaterc/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

// ErrNotInteractive is returned when a question needs an answer and no terminal is attached
var ErrNotInteractive = errors.Base("no interactive terminal")

// 🗣️ Interactor answers questions the core cannot decide alone.
// ReportProgress and Warn may be called from download workers concurrently.
type Interactor interface {
	PromptYesNo(ctx context.Context, question string, defaultYes bool) (bool, error)
	// ChooseOne returns the index of the chosen option
	ChooseOne(ctx context.Context, prompt string, options []string) (int, error)
	// GetCredentials returns nil when the site needs none
	GetCredentials(ctx context.Context, site index.UpdateSite) (*remote.Credentials, error)
	ReportProgress(jobID string, done, total int64)
	Warn(msg string)
}

// ConsoleOptions configures a Console
type ConsoleOptions struct {
	Out         io.Writer
	Logger      *log.Logger
	Interactive bool
	Getenv      func(string) string
}

// 🖥️ Console is the terminal Interactor
type Console struct {
	out         io.Writer
	logger      *log.Logger
	interactive bool
	getenv      func(string) string

	mu         sync.Mutex
	milestones map[string]int64
}

var _ Interactor = (*Console)(nil)

// 🏭 NewConsole creates a terminal Interactor
func NewConsole(opts ConsoleOptions) (*Console, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Console{
		out:         out,
		logger:      opts.Logger,
		interactive: opts.Interactive,
		getenv:      getenv,
		milestones:  make(map[string]int64),
	}, nil
}

// PromptYesNo asks a confirmation question, answering defaultYes without a terminal
func (c *Console) PromptYesNo(ctx context.Context, question string, defaultYes bool) (bool, error) {
	if !c.interactive {
		return defaultYes, nil
	}
	ok, err := pterm.DefaultInteractiveConfirm.WithDefaultValue(defaultYes).Show(question)
	if err != nil {
		return false, errors.Errorf("prompting: %w", err)
	}
	return ok, nil
}

// ChooseOne shows a selection list. A single option is chosen without asking.
func (c *Console) ChooseOne(ctx context.Context, prompt string, options []string) (int, error) {
	switch {
	case len(options) == 0:
		return -1, errors.Errorf("%s: nothing to choose from", prompt)
	case len(options) == 1:
		return 0, nil
	case !c.interactive:
		return -1, errors.Errorf("%s (%s): %w", prompt, strings.Join(options, ", "), ErrNotInteractive)
	}

	choice, err := pterm.DefaultInteractiveSelect.WithOptions(options).WithDefaultText(prompt).Show()
	if err != nil {
		return -1, errors.Errorf("prompting: %w", err)
	}
	for i, o := range options {
		if o == choice {
			return i, nil
		}
	}
	return -1, errors.Errorf("unknown choice %q", choice)
}

// 🔐 GetCredentials resolves the site's credentials reference, asking on the terminal when
// the site has none configured.
func (c *Console) GetCredentials(ctx context.Context, site index.UpdateSite) (*remote.Credentials, error) {
	if site.Credentials != "" {
		return ResolveCredentials(site.Credentials, c.getenv)
	}
	if !c.interactive {
		return nil, nil
	}

	user, err := pterm.DefaultInteractiveTextInput.Show(fmt.Sprintf("User name for %s (empty for none)", site.Name))
	if err != nil {
		return nil, errors.Errorf("prompting: %w", err)
	}
	if user == "" {
		return nil, nil
	}
	pass, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
	if err != nil {
		return nil, errors.Errorf("prompting: %w", err)
	}
	return &remote.Credentials{Username: user, Password: pass}, nil
}

// 📊 ReportProgress prints a line each time a job crosses a quarter of its size
func (c *Console) ReportProgress(jobID string, done, total int64) {
	if total <= 0 {
		return
	}
	pct := done * 100 / total
	milestone := pct - pct%25

	c.mu.Lock()
	last, seen := c.milestones[jobID]
	if seen && milestone <= last || milestone == 0 {
		c.mu.Unlock()
		return
	}
	c.milestones[jobID] = milestone
	if milestone >= 100 {
		delete(c.milestones, jobID)
	}
	c.mu.Unlock()

	pterm.Info.WithPrefix(pterm.Prefix{Text: "⬇"}).WithWriter(c.out).
		Printfln("%s %3d%% (%d/%d bytes)", jobID, milestone, done, total)
}

// Warn prints a warning through the diagnostics logger
func (c *Console) Warn(msg string) {
	c.logger.Warning(msg)
}

// 🔑 ResolveCredentials reads an env:VAR reference. The variable holds either
// user:password or a bare token.
func ResolveCredentials(ref string, getenv func(string) string) (*remote.Credentials, error) {
	name, ok := strings.CutPrefix(ref, "env:")
	if !ok || name == "" {
		return nil, errors.Errorf("unsupported credentials reference %q, options: env:VAR", ref)
	}
	value := getenv(name)
	if value == "" {
		return nil, errors.Errorf("credentials variable %s is not set", name)
	}
	if user, pass, found := strings.Cut(value, ":"); found {
		return &remote.Credentials{Username: user, Password: pass}, nil
	}
	return &remote.Credentials{Token: value}, nil
}
