package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/imamik/nodekit/pkg/compute"
)

// ListImages handles "images".
func ListImages(ctx context.Context, opts Options, w io.Writer) error {
	if err := checkOutput(opts.Output); err != nil {
		return err
	}
	return run(ctx, opts, func(s *session) error {
		imgs, err := s.svc.ListImages(ctx)
		if err != nil {
			return fmt.Errorf("failed to list images: %w", err)
		}
		if opts.Output == OutputJSON {
			return writeJSON(w, imgs)
		}
		tbl := newTable("ID", "NAME", "OS", "VERSION", "ARCH", "STATUS", "USER").withStatus(5)
		for _, img := range imgs {
			tbl.add(img.ID, img.Name, string(img.OS.Family), orDash(img.OS.Version), orDash(img.OS.Arch),
				string(img.Status), orDash(img.DefaultUser))
		}
		return tbl.render(w)
	})
}

// ListHardware handles "hardware".
func ListHardware(ctx context.Context, opts Options, w io.Writer) error {
	if err := checkOutput(opts.Output); err != nil {
		return err
	}
	return run(ctx, opts, func(s *session) error {
		profiles, err := s.svc.ListHardwareProfiles(ctx)
		if err != nil {
			return fmt.Errorf("failed to list hardware profiles: %w", err)
		}
		if opts.Output == OutputJSON {
			return writeJSON(w, profiles)
		}
		tbl := newTable("ID", "NAME", "CORES", "RAM (MB)", "DISK (GB)", "ARCH")
		for _, hw := range profiles {
			var disk float64
			for _, v := range hw.Volumes {
				disk += v.SizeGB
			}
			name := hw.Name
			if hw.Deprecated {
				name += " (deprecated)"
			}
			tbl.add(hw.ID, name, fmt.Sprintf("%g", hw.Cores()), fmt.Sprint(hw.RAM), fmt.Sprintf("%g", disk), orDash(hw.Arch))
		}
		return tbl.render(w)
	})
}

// ListLocations handles "locations".
func ListLocations(ctx context.Context, opts Options, w io.Writer) error {
	if err := checkOutput(opts.Output); err != nil {
		return err
	}
	return run(ctx, opts, func(s *session) error {
		locs, err := s.svc.ListLocations(ctx)
		if err != nil {
			return fmt.Errorf("failed to list locations: %w", err)
		}
		if opts.Output == OutputJSON {
			return writeJSON(w, locs)
		}
		tbl := newTable("ID", "SCOPE", "PARENT", "COUNTRY", "DESCRIPTION")
		for _, l := range locs {
			parent := "-"
			if l.Parent != nil {
				parent = l.Parent.ID
			}
			tbl.add(l.ID, string(l.Scope), parent, orDash(strings.Join(l.ISO3166Codes, ",")), orDash(l.Description))
		}
		return tbl.render(w)
	})
}

// SecurityGroupOptions are the flags of "security-groups".
type SecurityGroupOptions struct {
	Region   string
	Group    string
	Orphaned bool
}

// ListSecurityGroups handles "security-groups". With Orphaned set only the
// owned groups of Group that no node uses any more are listed.
func ListSecurityGroups(ctx context.Context, opts Options, w io.Writer, so SecurityGroupOptions) error {
	if err := checkOutput(opts.Output); err != nil {
		return err
	}
	if so.Orphaned && so.Group == "" {
		return fmt.Errorf("--group is required with --orphaned")
	}
	return run(ctx, opts, func(s *session) error {
		var groups []*compute.SecurityGroup
		var err error
		if so.Orphaned {
			groups, err = s.svc.FindOrphanedSecurityGroups(ctx, so.Region, so.Group)
		} else {
			groups, err = s.svc.ListSecurityGroups(ctx, so.Region)
		}
		if err != nil {
			return fmt.Errorf("failed to list security groups: %w", err)
		}
		if opts.Output == OutputJSON {
			return writeJSON(w, groups)
		}
		tbl := newTable("ID", "NAME", "NETWORK", "LOCATION", "RULES")
		for _, g := range groups {
			loc := "-"
			if g.Location != nil {
				loc = g.Location.ID
			}
			tbl.add(g.ID, g.Name, orDash(g.NetworkID), loc, formatPermissions(g.Permissions))
		}
		return tbl.render(w)
	})
}

func formatPermissions(perms []compute.IPPermission) string {
	if len(perms) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(perms))
	for _, p := range perms {
		port := fmt.Sprint(p.FromPort)
		if p.ToPort != p.FromPort {
			port = fmt.Sprintf("%d-%d", p.FromPort, p.ToPort)
		}
		parts = append(parts, p.Protocol+"/"+port)
	}
	return strings.Join(parts, ",")
}
