package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPasswords(t *testing.T, entries ...string) {
	t.Helper()

	original := readPassword
	t.Cleanup(func() { readPassword = original })

	i := 0
	readPassword = func(int) ([]byte, error) {
		if i >= len(entries) {
			return nil, errors.New("no more input")
		}
		entry := entries[i]
		i++
		return []byte(entry), nil
	}
}

func TestPromptPassword(t *testing.T) {
	t.Run("matching entries", func(t *testing.T) {
		stubPasswords(t, "Adm1n!Pass", "Adm1n!Pass")

		var out bytes.Buffer
		password, err := promptPassword(&out, 0)
		require.NoError(t, err)
		assert.Equal(t, "Adm1n!Pass", password)
		assert.Contains(t, out.String(), "Confirm password")
		assert.NotContains(t, out.String(), "Adm1n!Pass")
	})

	t.Run("mismatch", func(t *testing.T) {
		stubPasswords(t, "Adm1n!Pass", "Adm1n!Pas")
		_, err := promptPassword(&bytes.Buffer{}, 0)
		assert.EqualError(t, err, "passwords do not match")
	})

	t.Run("empty", func(t *testing.T) {
		stubPasswords(t, "", "")
		_, err := promptPassword(&bytes.Buffer{}, 0)
		assert.Error(t, err)
	})

	t.Run("read failure", func(t *testing.T) {
		stubPasswords(t)
		_, err := promptPassword(&bytes.Buffer{}, 0)
		assert.ErrorContains(t, err, "read password")
	})
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	names := make([]string, 0)
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "create-admin"}, names)

	root.SetArgs([]string{"migrate", "sideways"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}
