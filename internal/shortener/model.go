package shortener

import "time"

// Domain is a host that short links are served on.
type Domain struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Domain string `json:"domain" yaml:"domain"` // matched exactly against the request host
	Active bool   `json:"active" yaml:"active"`
	// CanCreateDynamicLinks is carried for the management tooling; resolution ignores it.
	CanCreateDynamicLinks bool    `json:"canCreateDynamicLinks" yaml:"canCreateDynamicLinks"`
	DefaultRedirectTo     *string `json:"defaultRedirectTo" yaml:"defaultRedirectTo"`
}

// Link maps a key on a domain to a redirect target.
type Link struct {
	Name       string `json:"name" yaml:"name"`
	DomainID   string `json:"domainId" yaml:"domainId"`
	Key        string `json:"key" yaml:"key"`
	RedirectTo string `json:"redirectTo" yaml:"redirectTo"`
	Active     bool   `json:"active" yaml:"active"`
	// ActiveFrom and ActiveTo are epoch milliseconds; nil leaves that side open.
	ActiveFrom *int64 `json:"activeFrom" yaml:"activeFrom"`
	ActiveTo   *int64 `json:"activeTo" yaml:"activeTo"`
}

func (l Link) notYetActive(now time.Time) bool {
	return l.ActiveFrom != nil && *l.ActiveFrom > now.UnixMilli()
}

func (l Link) expired(now time.Time) bool {
	return l.ActiveTo != nil && *l.ActiveTo < now.UnixMilli()
}
