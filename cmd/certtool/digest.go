package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"certtrace/pkg/digest"
)

func newDigestCmd() *cobra.Command {
	var algo string
	cmd := &cobra.Command{
		Use:   "digest <file>",
		Short: "Print the digest of a document",
		Long:  `Compute the digest a document is anchored under when its operation is recorded.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := digest.ParseAlgorithm(algo)
			if err != nil {
				return err
			}
			d, err := digest.File(a, args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), d.String())
			return err
		},
	}
	cmd.Flags().StringVar(&algo, "algo", string(digest.Default), "Digest algorithm (keccak256, sha256, blake3)")
	return cmd
}
