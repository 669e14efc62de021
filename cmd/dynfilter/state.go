package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// cliState is what the CLI remembers between runs: the filter session id
// it holds on each server.
type cliState struct {
	Sessions map[string]string `toml:"sessions"`
}

func statePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "dynfilter")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.toml"), nil
}

func loadState() (cliState, error) {
	path, err := statePath()
	if err != nil {
		return cliState{}, err
	}
	var st cliState
	if _, err := toml.DecodeFile(path, &st); err != nil {
		if os.IsNotExist(err) {
			return cliState{Sessions: map[string]string{}}, nil
		}
		return cliState{}, err
	}
	if st.Sessions == nil {
		st.Sessions = map[string]string{}
	}
	return st, nil
}

func saveState(st cliState) error {
	path, err := statePath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(st)
}

// savedSession returns the session id held for server, or "".
func savedSession(server string) string {
	st, err := loadState()
	if err != nil {
		return ""
	}
	return st.Sessions[server]
}

// rememberSession records id as the session for server, writing the state
// file only when it changed.
func rememberSession(server, id string) error {
	st, err := loadState()
	if err != nil {
		return err
	}
	if st.Sessions[server] == id {
		return nil
	}
	st.Sessions[server] = id
	return saveState(st)
}
