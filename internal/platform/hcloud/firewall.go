package hcloud

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodekit/internal/provider"
)

var anywhere = []string{"0.0.0.0/0", "::/0"}

// CreateSecurityGroup creates a firewall with inbound rules only.
func (p *Provider) CreateSecurityGroup(ctx context.Context, params provider.CreateSecurityGroupParams) (string, error) {
	rules, err := firewallRules(params.Rules)
	if err != nil {
		return "", err
	}
	labels := scoped(params.Labels, labelRegion, params.Region)
	labels = scoped(labels, labelNetwork, params.NetworkID)

	result, _, err := p.client.Firewall.Create(ctx, hcloud.FirewallCreateOpts{
		Name:   params.Name,
		Labels: labels,
		Rules:  rules,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create firewall %s: %w", params.Name, err)
	}
	id := formatID(result.Firewall.ID)
	for _, action := range result.Actions {
		p.rememberAction(id, action)
	}
	return id, nil
}

// GetSecurityGroup returns the firewall, or nil.
func (p *Provider) GetSecurityGroup(ctx context.Context, id string) (*provider.SecurityGroup, error) {
	fw, err := p.firewall(ctx, id)
	if err != nil || fw == nil {
		return nil, err
	}
	sg := toSecurityGroup(fw)
	return &sg, nil
}

func (p *Provider) firewall(ctx context.Context, id string) (*hcloud.Firewall, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	fw, _, err := p.client.Firewall.GetByID(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get firewall %s: %w", id, err)
	}
	return fw, nil
}

// ListSecurityGroups returns one page of firewalls. Firewalls without a
// region label match every region.
func (p *Provider) ListSecurityGroups(ctx context.Context, opts provider.ListOptions) (provider.Page[provider.SecurityGroup], error) {
	lo, err := pageOptions(opts)
	if err != nil {
		return provider.Page[provider.SecurityGroup]{}, err
	}
	firewalls, resp, err := p.client.Firewall.List(ctx, hcloud.FirewallListOpts{ListOpts: lo})
	if err != nil {
		return provider.Page[provider.SecurityGroup]{}, fmt.Errorf("failed to list firewalls: %w", err)
	}

	page := provider.Page[provider.SecurityGroup]{Next: nextMarker(resp)}
	for _, fw := range firewalls {
		if inRegion(fw.Labels, opts.Region) {
			page.Items = append(page.Items, toSecurityGroup(fw))
		}
	}
	return page, nil
}

// DeleteSecurityGroup deletes the firewall.
func (p *Provider) DeleteSecurityGroup(ctx context.Context, id string) error {
	return (&DeleteOperation[*hcloud.Firewall]{
		ID:   id,
		Kind: provider.KindSecurityGroup,
		Get: func(ctx context.Context) (*hcloud.Firewall, *hcloud.Response, error) {
			fw, err := p.firewall(ctx, id)
			return fw, nil, err
		},
		Delete: p.client.Firewall.Delete,
	}).Execute(ctx, p)
}

func firewallRules(rules []provider.Rule) ([]hcloud.FirewallRule, error) {
	out := make([]hcloud.FirewallRule, 0, len(rules))
	for _, r := range rules {
		cidrs := r.CIDRs
		if len(cidrs) == 0 {
			cidrs = anywhere
		}
		sources := make([]net.IPNet, 0, len(cidrs))
		for _, c := range cidrs {
			_, ipNet, err := net.ParseCIDR(c)
			if err != nil {
				return nil, fmt.Errorf("invalid rule source %q: %w", c, err)
			}
			sources = append(sources, *ipNet)
		}

		rule := hcloud.FirewallRule{
			Direction: hcloud.FirewallRuleDirectionIn,
			Protocol:  hcloud.FirewallRuleProtocol(strings.ToLower(r.Protocol)),
			SourceIPs: sources,
		}
		if rule.Protocol == hcloud.FirewallRuleProtocolTCP || rule.Protocol == hcloud.FirewallRuleProtocolUDP {
			rule.Port = hcloud.Ptr(portRange(r.FromPort, r.ToPort))
		}
		out = append(out, rule)
	}
	return out, nil
}

func portRange(from, to int) string {
	if to == 0 || to == from {
		return strconv.Itoa(from)
	}
	return fmt.Sprintf("%d-%d", from, to)
}

func toSecurityGroup(fw *hcloud.Firewall) provider.SecurityGroup {
	sg := provider.SecurityGroup{
		ID:        formatID(fw.ID),
		Name:      fw.Name,
		Region:    fw.Labels[labelRegion],
		NetworkID: fw.Labels[labelNetwork],
		Status:    provider.StatusAvailable,
		Labels:    unscoped(fw.Labels),
	}
	for _, r := range fw.Rules {
		if r.Direction != hcloud.FirewallRuleDirectionIn {
			continue
		}
		rule := provider.Rule{Protocol: string(r.Protocol)}
		if r.Port != nil {
			rule.FromPort, rule.ToPort = parsePortRange(*r.Port)
		}
		for _, src := range r.SourceIPs {
			rule.CIDRs = append(rule.CIDRs, src.String())
		}
		sg.Rules = append(sg.Rules, rule)
	}
	return sg
}

func parsePortRange(s string) (int, int) {
	from, to, found := strings.Cut(s, "-")
	lo, _ := strconv.Atoi(from)
	if !found {
		return lo, lo
	}
	hi, _ := strconv.Atoi(to)
	return lo, hi
}
