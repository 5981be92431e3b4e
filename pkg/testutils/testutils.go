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

// Package testutils holds fakes shared by the package tests.
package testutils

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/log"
	"github.com/walteh/updaterc/pkg/remote"
	"github.com/walteh/updaterc/pkg/ui"
)

// 🧪 Context returns a context carrying a test zerolog logger and a diagnostics
// logger printing to console
func Context(t testing.TB, console io.Writer) context.Context {
	t.Helper()
	zlog := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	ctx := zlog.WithContext(context.Background())
	return log.NewContext(ctx, log.New(console, zlog))
}

// 🔧 MockInteractor is a mock implementation of ui.Interactor
type MockInteractor struct {
	mock.Mock
}

var _ ui.Interactor = (*MockInteractor)(nil)

// NewMockInteractor creates a mock that ignores progress reports and asserts its
// expectations when the test ends
func NewMockInteractor(t testing.TB) *MockInteractor {
	m := &MockInteractor{}
	m.On("ReportProgress", mock.Anything, mock.Anything, mock.Anything).Maybe()
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockInteractor) PromptYesNo(ctx context.Context, question string, defaultYes bool) (bool, error) {
	args := m.Called(ctx, question, defaultYes)
	return args.Bool(0), args.Error(1)
}

func (m *MockInteractor) ChooseOne(ctx context.Context, prompt string, options []string) (int, error) {
	args := m.Called(ctx, prompt, options)
	return args.Int(0), args.Error(1)
}

func (m *MockInteractor) GetCredentials(ctx context.Context, site index.UpdateSite) (*remote.Credentials, error) {
	args := m.Called(ctx, site)
	creds, _ := args.Get(0).(*remote.Credentials)
	return creds, args.Error(1)
}

func (m *MockInteractor) ReportProgress(jobID string, done, total int64) {
	m.Called(jobID, done, total)
}

func (m *MockInteractor) Warn(msg string) {
	m.Called(msg)
}

// 💥 FaultFs wraps a filesystem and fails chosen operations on chosen paths.
// Rename faults match the destination path.
type FaultFs struct {
	afero.Fs
	mu     sync.Mutex
	faults map[string]error
}

// NewFaultFs wraps fs without any faults
func NewFaultFs(fs afero.Fs) *FaultFs {
	return &FaultFs{Fs: fs, faults: make(map[string]error)}
}

// Fail makes op ("open", "rename", "remove" or "chmod") on path return err
func (f *FaultFs) Fail(op, path string, err error) *FaultFs {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op+"|"+filepath.Clean(path)] = err
	return f
}

func (f *FaultFs) fault(op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.faults[op+"|"+filepath.Clean(path)]; ok {
		return &os.PathError{Op: op, Path: path, Err: err}
	}
	return nil
}

func (f *FaultFs) Open(name string) (afero.File, error) {
	if err := f.fault("open", name); err != nil {
		return nil, err
	}
	return f.Fs.Open(name)
}

func (f *FaultFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if err := f.fault("open", name); err != nil {
		return nil, err
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *FaultFs) Rename(oldname, newname string) error {
	if err := f.fault("rename", newname); err != nil {
		return err
	}
	return f.Fs.Rename(oldname, newname)
}

func (f *FaultFs) Remove(name string) error {
	if err := f.fault("remove", name); err != nil {
		return err
	}
	return f.Fs.Remove(name)
}

func (f *FaultFs) Chmod(name string, mode os.FileMode) error {
	if err := f.fault("chmod", name); err != nil {
		return err
	}
	return f.Fs.Chmod(name, mode)
}
