package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pairlink/internal/app"
	"pairlink/internal/domain"
	"pairlink/internal/services/session"
)

// propose <pairing-topic>: propose a session and wait for the responder to settle it.
func proposeCmd() *cobra.Command {
	var (
		chains, methods, events []string
		request, params, chain  string
	)
	cmd := &cobra.Command{
		Use:   "propose <pairing-topic>",
		Short: "Propose a session on an active pairing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			required, err := namespacesFor(chains, methods, events)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), app.RoleProposer)
			if err != nil {
				return err
			}
			defer closeApp(a)

			res, err := a.Proposer.Propose(cmd.Context(), session.ProposeParams{
				PairingTopic:       args[0],
				RequiredNamespaces: required,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Proposal %s sent. Waiting for settlement...\n", res.ID)
			s, err := res.Settlement(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Session settled.\nTopic: %s\nController: %s\n", s.Topic, s.Controller)
			for key, ns := range s.Namespaces {
				fmt.Printf("  %s accounts=%v methods=%v\n", key, ns.Accounts, ns.Methods)
			}

			if request == "" {
				return nil
			}
			result, err := a.Proposer.Request(cmd.Context(), session.RequestParams{
				Topic:   s.Topic,
				ChainID: chain,
				Method:  request,
				Params:  json.RawMessage(params),
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s\n", request, string(result))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&chains, "chains", []string{"eip155:1"}, "required chains (namespace:reference)")
	f.StringSliceVar(&methods, "methods", []string{"eth_sign"}, "required methods")
	f.StringSliceVar(&events, "events", nil, "required events")
	f.StringVar(&request, "request", "", "send this method once settled")
	f.StringVar(&params, "params", "[]", "JSON params for --request")
	f.StringVar(&chain, "chain", "", "chain id for --request")
	return cmd
}

// listen: act as responder until interrupted.
func listenCmd() *cobra.Command {
	var (
		accounts []string
		result   string
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Approve proposals covering --accounts and answer requests with --result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, acct := range accounts {
				if err := session.ValidateAccount(acct); err != nil {
					return err
				}
			}
			if !json.Valid([]byte(result)) {
				return fmt.Errorf("--result must be JSON")
			}
			a, err := openApp(cmd.Context(), app.RoleResponder)
			if err != nil {
				return err
			}
			defer closeApp(a)

			ctx := cmd.Context()
			a.Responder.On(func(ev session.Event) {
				switch ev.Kind {
				case session.EventProposal:
					ns := grant(ev.Proposal, accounts)
					s, err := a.Responder.Approve(ctx, session.ApproveParams{ProposalID: ev.Proposal.ID, Namespaces: ns})
					if err != nil {
						fmt.Printf("proposal %s: %v\n", ev.Proposal.ID, err)
						_ = a.Responder.Reject(ctx, session.RejectParams{ProposalID: ev.Proposal.ID, Reason: err.Error()})
						return
					}
					fmt.Printf("session %s settled with %q\n", s.Topic, s.Peer.Metadata.Name)
				case session.EventRequest:
					fmt.Printf("request %d %s %s\n", ev.Request.ID, ev.Request.Request.Method, string(ev.Request.Request.Params))
					err := a.Responder.Respond(ctx, session.RespondParams{Topic: ev.Topic, ID: ev.Request.ID, Result: json.RawMessage(result)})
					if err != nil {
						fmt.Printf("respond %d: %v\n", ev.Request.ID, err)
					}
				case session.EventDeleted:
					fmt.Printf("session %s ended: %s\n", ev.Topic, ev.Reason)
				}
			})

			fmt.Println("Listening. Ctrl-C to stop.")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&accounts, "accounts", nil, "CAIP-10 accounts to grant, e.g. eip155:1:0xabc")
	cmd.Flags().StringVar(&result, "result", `"0x"`, "JSON result returned for every request")
	_ = cmd.MarkFlagRequired("accounts")
	return cmd
}

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List settled sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := openWire()
			if err != nil {
				return err
			}
			all, err := w.Sessions.GetAll()
			if err != nil {
				return err
			}
			now := time.Now().Unix()
			for _, s := range all {
				if s.Status != domain.SessionSettled || s.Expired(now) {
					continue
				}
				fmt.Printf("%s  pairing=%s  peer=%q  expires in %s\n", s.Topic, s.PairingTopic, s.Peer.Metadata.Name, expiresIn(s.Expiry))
			}
			return nil
		},
	}
}

// disconnect <session-topic>: end a session and tell the peer.
func disconnectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "disconnect <session-topic>",
		Short: "End a session and notify the peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), app.RoleResponder)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if err := a.Responder.Disconnect(cmd.Context(), args[0], reason); err != nil {
				return err
			}
			fmt.Println("disconnected")
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "user disconnected", "reason sent to the peer")
	return cmd
}

// namespacesFor groups chains by namespace key and gives each the same methods and events.
func namespacesFor(chains, methods, events []string) (domain.Namespaces, error) {
	ns := domain.Namespaces{}
	for _, c := range chains {
		key, ref, ok := strings.Cut(c, ":")
		if !ok || key == "" || ref == "" {
			return nil, fmt.Errorf("chain %q must be namespace:reference", c)
		}
		n := ns[key]
		n.Chains = append(n.Chains, c)
		n.Methods = methods
		n.Events = events
		ns[key] = n
	}
	return ns, nil
}

// grant answers a proposal with exactly what it requires plus the accounts
// that live on a required chain.
func grant(p domain.Proposal, accounts []string) domain.Namespaces {
	out := domain.Namespaces{}
	for key, req := range p.RequiredNamespaces {
		n := domain.Namespace{Chains: req.Chains, Methods: req.Methods, Events: req.Events}
		for _, acct := range accounts {
			chain := acct[:strings.LastIndex(acct, ":")]
			for _, c := range req.Chains {
				if c == chain {
					n.Accounts = append(n.Accounts, acct)
				}
			}
		}
		out[key] = n
	}
	return out
}
