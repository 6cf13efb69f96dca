package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/raisecoach/internal/auth"
	"github.com/MikeSquared-Agency/raisecoach/internal/coaching"
	"github.com/MikeSquared-Agency/raisecoach/internal/config"
	"github.com/MikeSquared-Agency/raisecoach/internal/persona"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <utterance>",
		Short: "Print the coaching tip for an employee utterance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tip := coaching.Classify(strings.Join(args, " "))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"coachingTip": tip})
		},
	}
}

func newPromptCmd() *cobra.Command {
	var feedback, voice bool
	cmd := &cobra.Command{
		Use:   "prompt <persona> <target-raise>",
		Short: "Print the system prompt for a persona",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case feedback:
				_, err := fmt.Fprintln(out, persona.FeedbackPrompt())
				return err
			case voice:
				instructions, style := persona.VoicePrompt(persona.ID(args[0]), args[1])
				_, err := fmt.Fprintf(out, "voice: %s\n\n%s\n", style, instructions)
				return err
			}
			id, err := persona.Parse(args[0])
			if err != nil {
				return err
			}
			prompt, err := persona.NegotiationPrompt(id, args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, prompt)
			return err
		},
	}
	cmd.Flags().BoolVar(&feedback, "feedback", false, "print the out-of-character feedback prompt instead")
	cmd.Flags().BoolVar(&voice, "voice", false, "print the realtime voice instructions instead")
	cmd.MarkFlagsMutuallyExclusive("feedback", "voice")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Sign a development bearer token with AUTH_JWT_SECRET",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.AuthJWTSecret == "" {
				return fmt.Errorf("AUTH_JWT_SECRET is not configured")
			}
			userID := uuid.New()
			if len(args) == 1 {
				var err error
				if userID, err = uuid.Parse(args[0]); err != nil {
					return fmt.Errorf("user id: %w", err)
				}
			}
			tok, err := auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthAudience).Issue(userID, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
