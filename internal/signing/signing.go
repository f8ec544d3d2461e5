// Package signing verifies minisign signatures on files codesentry trusts,
// such as configuration that can disable rules or suppress findings.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package signing

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedisct1/go-minisign"
)

// SignatureSuffix is appended to a file path to locate its signature.
const SignatureSuffix = ".minisig"

// ParsePublicKey accepts either a bare base64 key or the contents of a
// minisign .pub file and returns the key line.
func ParsePublicKey(raw string) string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "untrusted comment:") {
			continue
		}
		return line
	}
	return ""
}

// KeyID returns the key ID from a .pub file comment such as
// "untrusted comment: minisign public key DE44B5D37442A1C0". keyOrPath is
// the key text or a path to the .pub file. A bare key has no ID.
func KeyID(keyOrPath string) string {
	raw := keyOrPath
	if info, err := os.Stat(keyOrPath); err == nil && !info.IsDir() {
		// #nosec G304 -- the key path comes from the user.
		data, err := os.ReadFile(keyOrPath)
		if err != nil {
			return ""
		}
		raw = string(data)
	}
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, "untrusted comment:") {
			parts := strings.Fields(line)
			if len(parts) >= 5 {
				return parts[len(parts)-1]
			}
		}
	}
	return ""
}

// LoadPublicKey reads a key given inline or as a path to a .pub file.
func LoadPublicKey(keyOrPath string) (string, error) {
	if info, err := os.Stat(keyOrPath); err == nil && !info.IsDir() {
		data, err := os.ReadFile(keyOrPath)
		if err != nil {
			return "", fmt.Errorf("read public key: %w", err)
		}
		keyOrPath = string(data)
	}
	key := ParsePublicKey(keyOrPath)
	if key == "" {
		return "", errors.New("empty public key")
	}
	return key, nil
}

// Verify checks a minisign signature over message.
func Verify(message, signature []byte, pubkeyStr string) error {
	if pubkeyStr == "" {
		return errors.New("no minisign public key")
	}

	pubkey, err := minisign.NewPublicKey(pubkeyStr)
	if err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}

	sig, err := minisign.DecodeSignature(string(signature))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	valid, err := pubkey.Verify(message, sig)
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	if !valid {
		return errors.New("invalid signature")
	}

	return nil
}

// VerifyFile checks path against the signature stored next to it.
func VerifyFile(path, keyOrPath string) error {
	key, err := LoadPublicKey(keyOrPath)
	if err != nil {
		return err
	}

	message, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	signature, err := os.ReadFile(path + SignatureSuffix)
	if err != nil {
		return fmt.Errorf("read signature: %w", err)
	}

	return Verify(message, signature, key)
}
