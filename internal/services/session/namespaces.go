package session

import (
	"sort"
	"strings"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
)

// ValidateAccount checks a CAIP-10 account id: namespace:chainId:address,
// with all three parts non-empty.
func ValidateAccount(account string) error {
	parts := strings.Split(account, ":")
	if len(parts) != 3 {
		return errs.Validation(errs.ReasonInvalidAccount, account, "account %q must be namespace:chainId:address", account)
	}
	for _, p := range parts {
		if p == "" {
			return errs.Validation(errs.ReasonInvalidAccount, account, "account %q has an empty part", account)
		}
	}
	return nil
}

// ValidateRequired checks that every required chain is a namespace:reference
// id under its own namespace key.
func ValidateRequired(required domain.Namespaces) error {
	for _, key := range sortedKeys(required) {
		for _, chain := range required[key].Chains {
			ns, ref, ok := strings.Cut(chain, ":")
			if !ok || ns != key || ref == "" {
				return errs.Validation(errs.ReasonInvalidChain, chain, "chain %q is not a %s chain", chain, key)
			}
		}
	}
	return nil
}

// ValidateApproval checks granted against a proposal's required namespaces:
// every required key, chain, method and event must be granted, and every
// granted account must be well formed and on a granted chain.
func ValidateApproval(required, granted domain.Namespaces) error {
	if err := checkCoverage(required, granted); err != nil {
		return err
	}
	for _, key := range sortedKeys(granted) {
		ns := granted[key]
		for _, acct := range ns.Accounts {
			if err := ValidateAccount(acct); err != nil {
				return err
			}
			chain := acct[:strings.LastIndex(acct, ":")]
			if len(ns.Chains) > 0 && !contains(ns.Chains, chain) {
				return errs.Validation(errs.ReasonInvalidAccount, acct, "account %q is not on a granted %s chain", acct, key)
			}
		}
	}
	return nil
}

// Covers reports whether granted satisfies required.
func Covers(granted, required domain.Namespaces) bool {
	return checkCoverage(required, granted) == nil
}

func checkCoverage(required, granted domain.Namespaces) error {
	for _, key := range sortedKeys(required) {
		req := required[key]
		got, ok := granted[key]
		if !ok {
			return errs.Validation(errs.ReasonMissingNamespace, key, "namespace %q not granted", key)
		}
		for _, c := range req.Chains {
			if !contains(got.Chains, c) {
				return errs.Validation(errs.ReasonMissingChain, c, "chain %q not granted in %s", c, key)
			}
		}
		for _, m := range req.Methods {
			if !contains(got.Methods, m) {
				return errs.Validation(errs.ReasonMissingMethod, m, "method %q not granted in %s", m, key)
			}
		}
		for _, e := range req.Events {
			if !contains(got.Events, e) {
				return errs.Validation(errs.ReasonMissingEvent, e, "event %q not granted in %s", e, key)
			}
		}
	}
	return nil
}

func sortedKeys(ns domain.Namespaces) []string {
	keys := make([]string, 0, len(ns))
	for k := range ns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
