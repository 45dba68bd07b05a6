// -----------------------------------------------------------------------
// DNS Lookup Plugin - Resolves A/AAAA and CNAME records for a domain
// -----------------------------------------------------------------------

package plugins

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/ternarybob/venator/internal/models"
)

// DNSLookupAdapter resolves a domain's addresses and canonical name. Emits
// "ip" (first address), "ips" (all addresses) and "cname" data fields for
// downstream steps to reference.
type DNSLookupAdapter struct {
	resolver *net.Resolver
}

// NewDNSLookupAdapter creates the builtin dns_lookup plugin.
func NewDNSLookupAdapter() *DNSLookupAdapter {
	return &DNSLookupAdapter{resolver: net.DefaultResolver}
}

func (a *DNSLookupAdapter) Name() string {
	return "dns_lookup"
}

// Invoke resolves the "domain" parameter. The stream always terminates with
// a complete or error event unless the consumer cancels first.
func (a *DNSLookupAdapter) Invoke(ctx context.Context, params map[string]interface{}) (<-chan models.PluginEvent, error) {
	domain, ok := stringParam(params, "domain")
	if !ok {
		return nil, fmt.Errorf("dns_lookup requires a non-empty \"domain\" parameter")
	}

	out := make(chan models.PluginEvent)
	go func() {
		defer close(out)

		if !emit(ctx, out, models.NewStatusEvent(fmt.Sprintf("resolving %s", domain))) {
			return
		}

		addrs, err := a.resolver.LookupHost(ctx, domain)
		if err != nil {
			emit(ctx, out, models.NewErrorEvent(fmt.Sprintf("lookup %s: %v", domain, err)))
			return
		}
		if len(addrs) == 0 {
			emit(ctx, out, models.NewErrorEvent(fmt.Sprintf("lookup %s: no addresses", domain)))
			return
		}

		if !emit(ctx, out, models.NewDataEvent(map[string]interface{}{
			"domain": domain,
			"ip":     addrs[0],
			"ips":    addrs,
		})) {
			return
		}

		cname, err := a.resolver.LookupCNAME(ctx, domain)
		if err == nil {
			cname = strings.TrimSuffix(cname, ".")
			if cname != "" && cname != domain {
				if !emit(ctx, out, models.NewDataEvent(map[string]interface{}{"cname": cname})) {
					return
				}
			}
		}

		emit(ctx, out, models.NewCompleteEvent(map[string]interface{}{
			"address_count": len(addrs),
		}))
	}()

	return out, nil
}
