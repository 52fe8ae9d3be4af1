package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/imamik/nodekit/pkg/compute"
)

// CreateOptions are the flags of "nodes create".
type CreateOptions struct {
	Group    string
	Count    int
	Image    string
	Hardware string
	Location string

	LoginUser     string
	KeyPairName   string
	PublicKeyFile string
	AutoKeyPair   bool

	NetworkID         string
	SubnetID          string
	AutoNetwork       bool
	SecurityGroupIDs  []string
	AutoSecurityGroup bool
	InboundPorts      []int

	UserDataFile string
	Tags         []string
	Metadata     map[string]string

	BlockOnPort        int
	BlockOnPortTimeout time.Duration

	ShowCredentials bool
}

// template turns the flags into a compute.Template, reading the files they name.
func (o CreateOptions) template() (compute.Template, error) {
	tmpl := compute.Template{
		ImageID:    o.Image,
		HardwareID: o.Hardware,
		LocationID: o.Location,
		Options: compute.TemplateOptions{
			LoginUser:               o.LoginUser,
			KeyPairName:             o.KeyPairName,
			AutoCreateKeyPair:       o.AutoKeyPair,
			NetworkID:               o.NetworkID,
			SubnetID:                o.SubnetID,
			AutoCreateNetwork:       o.AutoNetwork,
			SecurityGroupIDs:        o.SecurityGroupIDs,
			AutoCreateSecurityGroup: o.AutoSecurityGroup,
			InboundPorts:            o.InboundPorts,
			Tags:                    o.Tags,
			UserMetadata:            o.Metadata,
			BlockOnPort:             o.BlockOnPort,
			BlockOnPortTimeout:      o.BlockOnPortTimeout,
		},
	}
	if o.PublicKeyFile != "" {
		// #nosec G304
		data, err := os.ReadFile(o.PublicKeyFile)
		if err != nil {
			return tmpl, fmt.Errorf("failed to read public key: %w", err)
		}
		tmpl.Options.PublicKey = strings.TrimSpace(string(data))
	}
	if o.UserDataFile != "" {
		// #nosec G304
		data, err := os.ReadFile(o.UserDataFile)
		if err != nil {
			return tmpl, fmt.Errorf("failed to read user data: %w", err)
		}
		tmpl.Options.UserData = string(data)
	}
	return tmpl, nil
}

type failedNodeView struct {
	Name  string        `json:"name"`
	Error string        `json:"error"`
	Node  *compute.Node `json:"node,omitempty"`
}

type createView struct {
	Good []*compute.Node  `json:"good"`
	Bad  []failedNodeView `json:"bad"`
}

// CreateNodes handles "nodes create".
//
// Nodes that came up are printed even when part of the batch failed; the
// command then still returns an error naming the failed count.
func CreateNodes(ctx context.Context, opts Options, w io.Writer, co CreateOptions) error {
	if err := checkOutput(opts.Output); err != nil {
		return err
	}
	tmpl, err := co.template()
	if err != nil {
		return err
	}

	return run(ctx, opts, func(s *session) error {
		s.log.Info("Creating nodes", "group", co.Group, "count", co.Count)
		res, err := s.svc.CreateNodesInGroup(ctx, co.Group, co.Count, tmpl)
		if err != nil {
			return fmt.Errorf("create failed: %w", err)
		}

		view := createView{Good: sortedNodes(res.Good), Bad: []failedNodeView{}}
		for _, f := range res.Bad {
			view.Bad = append(view.Bad, failedNodeView{Name: f.Name, Error: f.Err.Error(), Node: f.Node})
		}
		slices.SortFunc(view.Bad, func(a, b failedNodeView) int { return strings.Compare(a.Name, b.Name) })
		if !co.ShowCredentials {
			view.Good = redactAll(view.Good)
		}

		if err := renderCreate(w, opts.Output, view); err != nil {
			return err
		}
		if len(view.Bad) > 0 {
			return fmt.Errorf("%d of %d nodes failed", len(view.Bad), co.Count)
		}
		return nil
	})
}

func renderCreate(w io.Writer, format string, view createView) error {
	if format == OutputJSON {
		return writeJSON(w, view)
	}
	if err := nodeTable(view.Good).render(w); err != nil {
		return err
	}
	if len(view.Bad) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, paint(redStyle, "Failed nodes:"))
	for _, f := range view.Bad {
		fmt.Fprintf(w, "  %s  %s\n", f.Name, paint(dimStyle, f.Error))
	}
	return nil
}

// NodeListOptions are the flags of "nodes list".
type NodeListOptions struct {
	Group      string
	BestEffort bool
}

type scopeErrorView struct {
	Scope string `json:"scope"`
	Error string `json:"error"`
}

type bestEffortView struct {
	Nodes        []*compute.Node  `json:"nodes"`
	FailedScopes []scopeErrorView `json:"failedScopes"`
}

// ListNodes handles "nodes list". An empty group lists every node. With
// BestEffort set, regions or zones that fail are reported next to the
// nodes of the others instead of failing the command.
func ListNodes(ctx context.Context, opts Options, w io.Writer, lo NodeListOptions) error {
	if err := checkOutput(opts.Output); err != nil {
		return err
	}
	return run(ctx, opts, func(s *session) error {
		if lo.BestEffort {
			return listNodesBestEffort(ctx, s, opts.Output, w, lo.Group)
		}
		var nodes []*compute.Node
		var err error
		if lo.Group == "" {
			nodes, err = s.svc.ListNodes(ctx)
		} else {
			nodes, err = s.svc.ListNodesInGroup(ctx, lo.Group)
		}
		if err != nil {
			return fmt.Errorf("failed to list nodes: %w", err)
		}
		nodes = redactAll(nodes)
		if opts.Output == OutputJSON {
			return writeJSON(w, nodes)
		}
		return nodeTable(nodes).render(w)
	})
}

func listNodesBestEffort(ctx context.Context, s *session, format string, w io.Writer, group string) error {
	nodes, failed, err := s.svc.ListNodesBestEffort(ctx, group)
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}
	view := bestEffortView{Nodes: redactAll(nodes), FailedScopes: make([]scopeErrorView, 0, len(failed))}
	for _, f := range failed {
		view.FailedScopes = append(view.FailedScopes, scopeErrorView{Scope: f.Scope, Error: f.Err.Error()})
	}
	slices.SortFunc(view.FailedScopes, func(a, b scopeErrorView) int { return strings.Compare(a.Scope, b.Scope) })

	if format == OutputJSON {
		return writeJSON(w, view)
	}
	if err := nodeTable(view.Nodes).render(w); err != nil {
		return err
	}
	if len(view.FailedScopes) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, paint(amberStyle, "Unreachable scopes:"))
	for _, f := range view.FailedScopes {
		fmt.Fprintf(w, "  %s  %s\n", f.Scope, paint(dimStyle, f.Error))
	}
	return nil
}

// GetNode handles "nodes get".
func GetNode(ctx context.Context, opts Options, w io.Writer, id string, showCredentials bool) error {
	if err := checkOutput(opts.Output); err != nil {
		return err
	}
	return run(ctx, opts, func(s *session) error {
		n, err := s.svc.GetNode(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get node %s: %w", id, err)
		}
		if n == nil {
			return fmt.Errorf("node %s not found", id)
		}
		if !showCredentials {
			n = redact(n)
		}
		if opts.Output == OutputJSON {
			return writeJSON(w, n)
		}
		return renderNodeDetail(w, n)
	})
}

// DestroyNodes handles "nodes destroy" for a single id or a whole group.
func DestroyNodes(ctx context.Context, opts Options, w io.Writer, id, group string) error {
	if err := checkOutput(opts.Output); err != nil {
		return err
	}
	if (id == "") == (group == "") {
		return fmt.Errorf("either a node id or --group is required")
	}
	return run(ctx, opts, func(s *session) error {
		if id != "" {
			if err := s.svc.DestroyNode(ctx, id); err != nil {
				return fmt.Errorf("destroy failed: %w", err)
			}
			if opts.Output == OutputJSON {
				return writeJSON(w, map[string]string{"destroyed": id})
			}
			fmt.Fprintf(w, "Node %s destroyed\n", id)
			return nil
		}

		nodes, err := s.svc.DestroyNodesInGroup(ctx, group)
		if opts.Output == OutputJSON {
			if jerr := writeJSON(w, redactAll(nodes)); jerr != nil {
				return jerr
			}
		} else {
			fmt.Fprintf(w, "Destroyed %d nodes of group %s\n", len(nodes), group)
		}
		if err != nil {
			return fmt.Errorf("destroy failed: %w", err)
		}
		return nil
	})
}

// Power operations accepted by PowerNode.
const (
	PowerReboot  = "reboot"
	PowerSuspend = "suspend"
	PowerResume  = "resume"
)

// PowerNode handles "nodes reboot|suspend|resume".
func PowerNode(ctx context.Context, opts Options, w io.Writer, op, id string) error {
	return run(ctx, opts, func(s *session) error {
		var err error
		switch op {
		case PowerReboot:
			err = s.svc.RebootNode(ctx, id)
		case PowerSuspend:
			err = s.svc.SuspendNode(ctx, id)
		case PowerResume:
			err = s.svc.ResumeNode(ctx, id)
		default:
			return fmt.Errorf("unknown power operation %q", op)
		}
		if err != nil {
			return fmt.Errorf("%s failed: %w", op, err)
		}
		fmt.Fprintf(w, "Node %s: %s done\n", id, op)
		return nil
	})
}

type taskView struct {
	Kind string `json:"kind"`
	compute.TaskInfo
}

// ListTasks handles "nodes tasks".
func ListTasks(ctx context.Context, opts Options, w io.Writer, id string) error {
	if err := checkOutput(opts.Output); err != nil {
		return err
	}
	return run(ctx, opts, func(s *session) error {
		tasks, err := s.svc.ListTasks(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}
		views := make([]taskView, 0, len(tasks))
		for _, t := range tasks {
			views = append(views, taskView{Kind: compute.TaskKind(t), TaskInfo: t.Info()})
		}
		if opts.Output == OutputJSON {
			return writeJSON(w, views)
		}
		tbl := newTable("ID", "KIND", "STATUS", "STARTED", "FINISHED", "ERROR").withStatus(2)
		for _, v := range views {
			tbl.add(v.ID, v.Kind, string(v.Status), formatTime(v.Started), formatTime(v.Finished), orDash(v.Error))
		}
		return tbl.render(w)
	})
}

func nodeTable(nodes []*compute.Node) *table {
	tbl := newTable("ID", "NAME", "GROUP", "STATUS", "LOCATION", "IMAGE", "HARDWARE", "PUBLIC IP").withStatus(3)
	for _, n := range nodes {
		loc, hw := "-", "-"
		if n.Location != nil {
			loc = n.Location.ID
		}
		if n.Hardware != nil {
			hw = n.Hardware.ID
		}
		ip := "-"
		if len(n.PublicAddresses) > 0 {
			ip = n.PublicAddresses[0]
		}
		tbl.add(n.ID, n.Name, orDash(n.Group), string(n.Status), loc, orDash(n.ImageID), hw, ip)
	}
	return tbl
}

func renderNodeDetail(w io.Writer, n *compute.Node) error {
	row := func(k, v string) {
		fmt.Fprintf(w, "  %-18s %s\n", paint(dimStyle, k+":"), v)
	}
	fmt.Fprintln(w, paint(headerStyle, n.Name))
	row("ID", n.ID)
	row("Group", orDash(n.Group))
	row("Status", paint(statusStyle(string(n.Status)), string(n.Status))+" ("+orDash(n.BackendStatus)+")")
	if n.Location != nil {
		row("Location", n.Location.Path())
	}
	row("Image", orDash(n.ImageID))
	if n.OS != nil {
		row("OS", strings.TrimSpace(string(n.OS.Family)+" "+n.OS.Version))
	}
	if n.Hardware != nil {
		row("Hardware", fmt.Sprintf("%s (%g cores, %d MB)", n.Hardware.ID, n.Hardware.Cores(), n.Hardware.RAM))
	}
	row("Public", orDash(strings.Join(n.PublicAddresses, ", ")))
	row("Private", orDash(strings.Join(n.PrivateAddresses, ", ")))
	row("Login port", fmt.Sprint(n.LoginPort))
	if n.Credentials != nil {
		row("Login user", n.Credentials.User)
		if n.Credentials.HasPrivateKey() {
			fmt.Fprintln(w, n.Credentials.PrivateKey)
		}
	}
	if len(n.Tags) > 0 {
		row("Tags", strings.Join(n.Tags, ", "))
	}
	return nil
}

func sortedNodes(m map[string]*compute.Node) []*compute.Node {
	nodes := make([]*compute.Node, 0, len(m))
	for _, n := range m {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *compute.Node) int { return strings.Compare(a.Name, b.Name) })
	return nodes
}

// redact drops secrets but keeps the login user.
func redact(n *compute.Node) *compute.Node {
	if n.Credentials == nil {
		return n
	}
	return n.WithCredentials(&compute.LoginCredentials{User: n.Credentials.User})
}

func redactAll(nodes []*compute.Node) []*compute.Node {
	out := make([]*compute.Node, len(nodes))
	for i, n := range nodes {
		out[i] = redact(n)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
