package types

// Namespace is a bundle of chains, methods, events and accounts a session is
// scoped to.
type Namespace struct {
	Chains   []string `json:"chains"`
	Methods  []string `json:"methods"`
	Events   []string `json:"events"`
	Accounts []string `json:"accounts,omitempty"`
}

// Namespaces maps a namespace key (for example "eip155") to its Namespace.
type Namespaces map[string]Namespace

// HasMethod reports whether any namespace grants method.
func (ns Namespaces) HasMethod(method string) bool {
	for _, n := range ns {
		if contains(n.Methods, method) {
			return true
		}
	}
	return false
}

// HasEvent reports whether any namespace grants event.
func (ns Namespaces) HasEvent(event string) bool {
	for _, n := range ns {
		if contains(n.Events, event) {
			return true
		}
	}
	return false
}

// HasChain reports whether any namespace lists chain.
func (ns Namespaces) HasChain(chain string) bool {
	for _, n := range ns {
		if contains(n.Chains, chain) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
