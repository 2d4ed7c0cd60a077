package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pairlink/internal/app"
	"pairlink/internal/services/pairing"
)

// create: start a pairing and wait for the responder to approve it.
func createCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pairing and print its URI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), app.RolePairingOnly)
			if err != nil {
				return err
			}
			defer closeApp(a)

			res, err := a.Pairing.Create(cmd.Context(), pairing.CreateParams{})
			if err != nil {
				return err
			}
			fmt.Printf("Topic: %s\nURI:   %s\n", res.Topic, res.URI)
			if !wait {
				return nil
			}
			fmt.Println("Waiting for approval...")
			p, err := res.Approval(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Approved by %q (%s)\n", p.Peer.Metadata.Name, p.Peer.PublicKey)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the peer to approve")
	return cmd
}

// activate <uri>: join a pairing as responder.
func activateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <uri>",
		Short: "Join a pairing from a URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), app.RolePairingOnly)
			if err != nil {
				return err
			}
			defer closeApp(a)

			p, err := a.Pairing.Activate(cmd.Context(), pairing.ActivateParams{URI: args[0]})
			if err != nil {
				return err
			}
			fmt.Printf("Pairing active.\nTopic: %s\n", p.Topic)
			return nil
		},
	}
}

func pairingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pairings",
		Short: "List known pairings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := openWire()
			if err != nil {
				return err
			}
			all, err := w.Pairings.GetAll()
			if err != nil {
				return err
			}
			now := time.Now().Unix()
			for _, p := range all {
				if p.Expired(now) {
					continue
				}
				fmt.Printf("%s  %-7s  peer=%q  expires in %s\n", p.Topic, p.Status, p.Peer.Metadata.Name, expiresIn(p.Expiry))
			}
			return nil
		},
	}
}

// delete <topic>: remove a pairing locally and tell the peer.
func deleteCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "delete <topic>",
		Short: "Delete a pairing and notify the peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), app.RolePairingOnly)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if err := a.Pairing.Delete(cmd.Context(), args[0], reason); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "user disconnected", "reason sent to the peer")
	return cmd
}

func pingCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ping <topic>",
		Short: "Ping the peer of an active pairing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), app.RolePairingOnly)
			if err != nil {
				return err
			}
			defer closeApp(a)

			pong := make(chan struct{}, 1)
			a.Pairing.On(func(ev pairing.Event) {
				if ev.Kind == pairing.EventPong && ev.Topic == args[0] {
					select {
					case pong <- struct{}{}:
					default:
					}
				}
			})

			start := time.Now()
			if err := a.Pairing.Ping(cmd.Context(), args[0]); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			select {
			case <-pong:
				fmt.Printf("pong in %s\n", time.Since(start).Round(time.Millisecond))
				return nil
			case <-ctx.Done():
				return fmt.Errorf("no pong within %s", timeout)
			}
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for the pong")
	return cmd
}
