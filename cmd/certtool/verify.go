package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"certtrace/pkg/digest"
	"certtrace/pkg/domain"
)

type verifyOptions struct {
	server    string
	operation string
	algo      string
	timeout   time.Duration
}

func newVerifyCmd() *cobra.Command {
	opts := verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Check a document against a recorded operation",
		Long: `Compute the document digest and ask the server whether it matches the
digest anchored by the given operation. Exits non-zero on mismatch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8080", "certtrace server URL")
	cmd.Flags().StringVar(&opts.operation, "operation", "", "Operation id")
	cmd.Flags().StringVar(&opts.algo, "algo", string(digest.Default), "Digest algorithm (keccak256, sha256, blake3)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	_ = cmd.MarkFlagRequired("operation")
	return cmd
}

func runVerify(cmd *cobra.Command, path string, opts verifyOptions) error {
	id, err := domain.ParseOperationID(opts.operation)
	if err != nil {
		return err
	}
	a, err := digest.ParseAlgorithm(opts.algo)
	if err != nil {
		return err
	}
	d, err := digest.File(a, path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	match, err := verifyRemote(ctx, http.DefaultClient, opts.server, id, d)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !match {
		color.New(color.FgRed, color.Bold).Fprint(out, "MISMATCH ")
		fmt.Fprintf(out, "operation %s does not anchor %s\n", id, d)
		return fmt.Errorf("document does not match operation %s", id)
	}
	color.New(color.FgGreen, color.Bold).Fprint(out, "MATCH ")
	fmt.Fprintf(out, "operation %s anchors %s\n", id, d)
	return nil
}

func verifyRemote(ctx context.Context, client *http.Client, server string, id domain.OperationID, d domain.Digest) (bool, error) {
	body, err := json.Marshal(map[string]string{"digest": d.String()})
	if err != nil {
		return false, err
	}
	url := strings.TrimRight(server, "/") + "/operations/" + id.String() + "/verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("verify request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			return false, fmt.Errorf("server returned %s", resp.Status)
		}
		return false, fmt.Errorf("server returned %s: %s", e.Error, e.Description)
	}
	var result struct {
		Match bool `json:"match"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return result.Match, nil
}
