package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samvad-hq/gidipin-go/internal/app"
	"github.com/samvad-hq/gidipin-go/internal/config"
	"github.com/samvad-hq/gidipin-go/internal/logger"
	"github.com/spf13/cobra"
)

type cli struct {
	cfg    *config.Config
	log    logger.Logger
	stdout io.Writer
	stderr io.Writer

	apiKey  string
	baseURL string
	output  string
}

func newRootCmd(cfg *config.Config, log logger.Logger, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{cfg: cfg, log: log, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "gidipin",
		Short: "Verify GidiPIN professionals and run Instant Sign-In",
		Long: `gidipin talks to the GidiPIN API: it verifies PINs, fetches public
professional details and drives the Instant Sign-In consent flow.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch c.output {
			case outputJSON, outputTable:
				return nil
			default:
				return fmt.Errorf("unsupported output %q (json or table)", c.output)
			}
		},
	}

	root.PersistentFlags().StringVar(&c.apiKey, "api-key", "", "API key (overrides GIDIPIN_API_KEY)")
	root.PersistentFlags().StringVar(&c.baseURL, "base-url", "", "API base URL (overrides GIDIPIN_BASE_URL)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", outputJSON, "Output format: json or table")

	root.AddCommand(c.verifyCmd())
	root.AddCommand(c.professionalCmd())
	root.AddCommand(c.signinCmd())
	root.AddCommand(c.exchangeCmd())
	root.AddCommand(c.callbackCmd())

	return root
}

// service applies flag overrides to the loaded config and builds the service.
func (c *cli) service(cmd *cobra.Command) (*app.Service, error) {
	cfg := *c.cfg
	if c.apiKey != "" {
		cfg.APIKey = c.apiKey
	}
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	return app.NewServiceFromConfig(cmd.Context(), &cfg, c.log)
}

func (c *cli) print(raw json.RawMessage) error {
	return render(c.stdout, c.output, raw)
}

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <pin>",
		Short: "Check whether a PIN belongs to a registered professional",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			raw, err := svc.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(raw)
		},
	}
}

func (c *cli) professionalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "professional <pin>",
		Short: "Fetch the public details behind a PIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			raw, err := svc.Professional(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(raw)
		},
	}
}

func (c *cli) signinCmd() *cobra.Command {
	var opts app.SignInOptions

	cmd := &cobra.Command{
		Use:   "signin <pin>",
		Short: "Start an Instant Sign-In and print the consent URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			start, err := svc.BeginSignIn(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stderr, "state: %s\n", start.State)
			return c.print(start.Response)
		},
	}

	cmd.Flags().StringVar(&opts.RedirectURI, "redirect-uri", "", "Callback URL (defaults to REDIRECT_URI)")
	cmd.Flags().StringSliceVar(&opts.Scopes, "scope", nil, "Requested scope, repeatable (defaults to SIGNIN_SCOPES)")
	cmd.Flags().StringVar(&opts.State, "state", "", "Opaque state echoed to the callback (generated when empty)")
	return cmd
}

func (c *cli) exchangeCmd() *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code for an access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			var raw json.RawMessage
			if strings.TrimSpace(state) != "" {
				raw, err = svc.CompleteSignIn(cmd.Context(), args[0], state)
			} else {
				raw, err = svc.Exchange(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return c.print(raw)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "State returned to the callback; checked against the state store when set")
	return cmd
}

func (c *cli) callbackCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "callback",
		Short: "Serve the sign-in redirect target until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if addr == "" {
				addr = c.cfg.CallbackAddr
			}
			return svc.Serve(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to CALLBACK_ADDR)")
	return cmd
}
