package certchain

import (
	"fmt"
	"math/big"
	"time"
)

// ErrKind enumerates the certificate-chain failure taxonomy from spec §7.
type ErrKind string

const (
	ErrIncomplete    ErrKind = "Incomplete"
	ErrUntrustedRoot ErrKind = "UntrustedRoot"
	ErrExpired       ErrKind = "Expired"
	ErrRevoked       ErrKind = "Revoked"
	ErrBadSignature  ErrKind = "BadSignature"
)

// ChainError is the structured error raised by this package.
type ChainError struct {
	Kind   ErrKind
	Detail string
}

func (e *ChainError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("certificate chain error: %s", e.Kind)
	}
	return fmt.Sprintf("certificate chain error: %s: %s", e.Kind, e.Detail)
}

// Chain is an ordered [leaf, intermediate, root] certificate sequence.
// Intermediate == Root when the input set has only two certificates
// (leaf directly issued by a self-signed root).
type Chain struct {
	Leaf         *Cert
	Intermediate *Cert
	Root         *Cert
}

// BuildChain assembles an unordered set of PEM-encoded certificates into
// [leaf, intermediate, root] by following issuer -> subject links.
// It fails with ErrIncomplete on any missing link and embeds
// "NotSelfSignedRoot" in the detail when the terminal certificate's
// issuer does not equal its own subject.
func BuildChain(pemBlocks [][]byte) (*Chain, error) {
	certs := make([]*Cert, 0, len(pemBlocks))
	for _, block := range pemBlocks {
		c, err := ParsePEM(block)
		if err != nil {
			return nil, &ChainError{Kind: ErrIncomplete, Detail: err.Error()}
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, &ChainError{Kind: ErrIncomplete, Detail: "empty certificate set"}
	}

	bySubject := func(der []byte) *Cert {
		for _, c := range certs {
			if bytesEqual(c.subjectDER(), der) {
				return c
			}
		}
		return nil
	}

	// The leaf is the certificate that is not self-signed and whose
	// subject is not any other certificate's issuer: nothing was issued
	// further down the chain from it.
	isIssuerOfSomeone := make(map[*Cert]bool, len(certs))
	for _, c := range certs {
		if issuer := bySubject(c.issuerDER()); issuer != nil && issuer != c {
			isIssuerOfSomeone[issuer] = true
		}
	}
	var leaf *Cert
	for _, c := range certs {
		if !c.isSelfSigned() && !isIssuerOfSomeone[c] {
			leaf = c
			break
		}
	}
	if leaf == nil {
		return nil, &ChainError{Kind: ErrIncomplete, Detail: "could not identify leaf certificate"}
	}

	intermediate := bySubject(leaf.issuerDER())
	if intermediate == nil {
		return nil, &ChainError{Kind: ErrIncomplete, Detail: "missing intermediate certificate for leaf issuer " + leaf.Issuer()}
	}
	if intermediate.isSelfSigned() {
		return &Chain{Leaf: leaf, Intermediate: intermediate, Root: intermediate}, nil
	}

	root := bySubject(intermediate.issuerDER())
	if root == nil {
		return nil, &ChainError{Kind: ErrIncomplete, Detail: "missing root certificate for intermediate issuer " + intermediate.Issuer()}
	}
	if !root.isSelfSigned() {
		return nil, &ChainError{Kind: ErrIncomplete, Detail: "NotSelfSignedRoot: terminal certificate issuer does not match its own subject"}
	}

	return &Chain{Leaf: leaf, Intermediate: intermediate, Root: root}, nil
}

// Options controls VerifyPckChain's temporal/pinning/CRL checks.
type Options struct {
	Date            time.Time // evaluation time; zero means time.Now()
	PinnedRootCerts []*Cert   // if non-empty, Root must SHA-256-match one of these
	RevokedSerials  map[string]bool
}

// VerifyPckChain builds a chain from pemBlocks, verifies every
// signature up the chain, checks temporal validity at opts.Date,
// confirms the root is pinned (if opts.PinnedRootCerts is non-empty),
// and checks every member's serial against opts.RevokedSerials.
func VerifyPckChain(pemBlocks [][]byte, opts Options) (*Chain, error) {
	chain, err := BuildChain(pemBlocks)
	if err != nil {
		return nil, err
	}

	evalTime := opts.Date
	if evalTime.IsZero() {
		evalTime = time.Now()
	}

	members := []*Cert{chain.Leaf, chain.Root}
	if chain.Intermediate != chain.Root {
		members = []*Cert{chain.Leaf, chain.Intermediate, chain.Root}
	}

	if chain.Intermediate != chain.Root {
		if err := chain.Leaf.VerifySignedBy(chain.Intermediate); err != nil {
			return nil, &ChainError{Kind: ErrBadSignature, Detail: "leaf not signed by intermediate: " + err.Error()}
		}
		if err := chain.Intermediate.VerifySignedBy(chain.Root); err != nil {
			return nil, &ChainError{Kind: ErrBadSignature, Detail: "intermediate not signed by root: " + err.Error()}
		}
	} else {
		if err := chain.Leaf.VerifySignedBy(chain.Root); err != nil {
			return nil, &ChainError{Kind: ErrBadSignature, Detail: "leaf not signed by root: " + err.Error()}
		}
	}
	if err := chain.Root.VerifySignedBy(chain.Root); err != nil {
		return nil, &ChainError{Kind: ErrBadSignature, Detail: "root is not validly self-signed: " + err.Error()}
	}

	if len(opts.PinnedRootCerts) > 0 {
		rootHash := ComputeCertSha256Hex(chain.Root)
		pinned := false
		for _, p := range opts.PinnedRootCerts {
			if ComputeCertSha256Hex(p) == rootHash {
				pinned = true
				break
			}
		}
		if !pinned {
			return nil, &ChainError{Kind: ErrUntrustedRoot, Detail: "root certificate does not match any pinned root"}
		}
	}

	for _, m := range members {
		if evalTime.Before(m.NotBefore()) || evalTime.After(m.NotAfter()) {
			return nil, &ChainError{Kind: ErrExpired, Detail: fmt.Sprintf("%s is not valid at %s", m.Subject(), evalTime)}
		}
	}

	if len(opts.RevokedSerials) > 0 {
		for _, m := range members {
			if opts.RevokedSerials[serialKey(m.SerialNumber())] {
				return nil, &ChainError{Kind: ErrRevoked, Detail: fmt.Sprintf("%s serial %s is revoked", m.Subject(), m.SerialNumber())}
			}
		}
	}

	return chain, nil
}

func serialKey(s *big.Int) string {
	return s.String()
}
