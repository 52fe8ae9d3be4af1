package compute

// Processor is one virtual CPU group of a hardware profile.
type Processor struct {
	Cores float64 `json:"cores"`
	Speed float64 `json:"speed"` // GHz, 0 when the provider does not publish it
}

// VolumeType distinguishes local disks from network attached storage.
type VolumeType string

const (
	VolumeLocal VolumeType = "LOCAL"
	VolumeSAN   VolumeType = "SAN"
)

// Volume is a disk that belongs to a hardware profile or a node.
type Volume struct {
	ID         string     `json:"id,omitempty"`
	Type       VolumeType `json:"type"`
	SizeGB     float64    `json:"sizeGb"`
	Device     string     `json:"device,omitempty"`
	Durable    bool       `json:"durable"`
	BootDevice bool       `json:"bootDevice"`
}

// Hardware is an immutable compute shape.
type Hardware struct {
	ID         string      `json:"id"`
	ProviderID string      `json:"providerId"`
	Name       string      `json:"name"`
	Processors []Processor `json:"processors"`
	RAM        int         `json:"ram"` // MB
	Volumes    []Volume    `json:"volumes,omitempty"`
	Arch       string      `json:"arch,omitempty"`
	Location   *Location   `json:"location,omitempty"`
	Deprecated bool        `json:"deprecated"`
}

// Cores sums the cores of every processor.
func (h *Hardware) Cores() float64 {
	var total float64
	for _, p := range h.Processors {
		total += p.Cores
	}
	return total
}
