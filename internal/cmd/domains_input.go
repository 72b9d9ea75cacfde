package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// resolveDomains merges positional domains with a plain-text list. Entries
// are returned raw; the session normalizes them.
func resolveDomains(positional []string, listFile string) ([]string, error) {
	domains := make([]string, 0, len(positional))
	for _, raw := range positional {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			domains = append(domains, trimmed)
		}
	}

	trimmed := strings.TrimSpace(listFile)
	if trimmed == "" {
		return domains, nil
	}
	listed, err := readDomainList(trimmed)
	if err != nil {
		return nil, err
	}
	return append(domains, listed...), nil
}

func readDomainList(path string) ([]string, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		// #nosec G304 -- path is supplied by the operator
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close() // nolint:errcheck
		reader = file
	}
	return scanDomainList(reader)
}

// scanDomainList reads one domain per line, skipping blanks and # comments.
func scanDomainList(r io.Reader) ([]string, error) {
	domains := make([]string, 0)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		domains = append(domains, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read domain list: %w", err)
	}
	return domains, nil
}
