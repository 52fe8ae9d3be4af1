package hcloud

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodekit/internal/provider"
)

// taskKinds maps action commands to canonical task kinds. Commands not
// listed become generic tasks.
var taskKinds = map[string]string{
	"create_server":           provider.TaskKindDeploy,
	"delete_server":           provider.TaskKindUndeploy,
	"start_server":            provider.TaskKindPowerOn,
	"stop_server":             provider.TaskKindPowerOff,
	"shutdown_server":         provider.TaskKindPowerOff,
	"reboot_server":           provider.TaskKindReboot,
	"reset_server":            provider.TaskKindReset,
	"create_image":            provider.TaskKindSnapshot,
	"change_server_type":      provider.TaskKindReconfigure,
	"attach_to_network":       provider.TaskKindReconfigure,
	"detach_from_network":     provider.TaskKindReconfigure,
	"apply_firewall":          provider.TaskKindReconfigure,
	"remove_firewall":         provider.TaskKindReconfigure,
	"add_subnet":              provider.TaskKindReconfigure,
	"delete_subnet":           provider.TaskKindReconfigure,
	"set_firewall_rules":      provider.TaskKindReconfigure,
	"change_dns_ptr":          provider.TaskKindReconfigure,
	"change_protection":       provider.TaskKindReconfigure,
	"enable_rescue":           provider.TaskKindReconfigure,
	"disable_rescue":          provider.TaskKindReconfigure,
	"rebuild_server":          provider.TaskKindDeploy,
	"change_alias_ips":        provider.TaskKindReconfigure,
	"attach_iso":              provider.TaskKindReconfigure,
	"detach_iso":              provider.TaskKindReconfigure,
	"enable_backup":           provider.TaskKindReconfigure,
	"disable_backup":          provider.TaskKindReconfigure,
	"reset_server_password":   provider.TaskKindReconfigure,
	"change_network_ip_range": provider.TaskKindReconfigure,
}

// GetTask returns the action with the given id, or nil.
func (p *Provider) GetTask(ctx context.Context, id string) (*provider.Task, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	action, _, err := p.client.Action.GetByID(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get action %s: %w", id, err)
	}
	if action == nil {
		return nil, nil
	}
	task := toTask(action, "")
	return &task, nil
}

// ListTasks returns the actions this process started on the resource.
// Markers are not used; everything fits one page.
func (p *Provider) ListTasks(ctx context.Context, resourceID string, _ provider.ListOptions) (provider.Page[provider.Task], error) {
	var page provider.Page[provider.Task]
	for _, id := range p.rememberedActions(resourceID) {
		action, _, err := p.client.Action.GetByID(ctx, id)
		if err != nil {
			return provider.Page[provider.Task]{}, fmt.Errorf("failed to get action %d: %w", id, err)
		}
		if action != nil {
			page.Items = append(page.Items, toTask(action, resourceID))
		}
	}
	return page, nil
}

func toTask(a *hcloud.Action, resourceID string) provider.Task {
	task := provider.Task{
		ID:         formatID(a.ID),
		Kind:       taskKinds[a.Command],
		Command:    a.Command,
		ResourceID: resourceID,
		Status:     string(a.Status),
		Started:    a.Started,
		Finished:   a.Finished,
	}
	if task.ResourceID == "" {
		ids := make([]string, 0, len(a.Resources))
		for _, r := range a.Resources {
			if r != nil {
				ids = append(ids, formatID(r.ID))
			}
		}
		slices.Sort(ids)
		task.ResourceID = strings.Join(ids, ",")
	}
	if a.Status == hcloud.ActionStatusError {
		task.Error = fmt.Sprintf("%s: %s", a.ErrorCode, a.ErrorMessage)
	}
	return task
}
