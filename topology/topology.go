// Package topology renders the mesh topology page: nodes grouped into
// distance bands by their ETX, each with its services and LAN hosts.
package topology

import (
	"net/netip"
	"strconv"

	"go4.org/netipx"

	"github.com/meshpage/meshpage/filter"
	"github.com/meshpage/meshpage/m"
)

// Options configure rendering.
type Options struct {
	// Thresholds are the distance band boundaries, without the overflow band.
	// Defaults to m.DefaultThresholds.
	Thresholds m.Thresholds

	// LocalDomain is appended to host names for links.
	// Defaults to m.DefaultLocalDomain.
	LocalDomain string

	// Hidden holds node addresses that are not rendered.
	Hidden *netipx.IPSet
}

// View is a rendered topology.
type View struct {
	Blocks []*Block

	nodeCnt int
	targets []filter.Target
}

// Block is a distance band.
type Block struct {
	// Threshold is the lower boundary of the band.
	Threshold float64
	Nodes     []*Node
}

// Node is a mesh node with its primary host.
type Node struct {
	ID        string
	Node      string
	Hostname  string
	Link      string
	ETX       float64
	Services  []*Service
	LANHosts  []*LANHost
	SearchKey string
}

// LANHost is a host attached to the LAN of a node.
type LANHost struct {
	ID        string
	Hostname  string
	Services  []*Service
	SearchKey string
}

// Service is a service offered by a host.
type Service struct {
	ID   string
	Name string
	// Link is empty for services that cannot be linked to.
	Link      string
	SearchKey string
}

// Label returns the band label, eg. "block2".
func (b *Block) Label() string {
	return "block" + m.FormatNumber(b.Threshold)
}

// ETXLabel returns the ETX formatted for display.
func (n *Node) ETXLabel() string {
	return m.FormatNumber(n.ETX)
}

// Targets returns all searchable elements of the view in page order.
func (v *View) Targets() []filter.Target {
	return v.targets
}

// NodeCount returns the amount of rendered nodes.
func (v *View) NodeCount() int {
	return v.nodeCnt
}

// Render renders the topology of the given snapshot.
//
// Nodes are expected to be sorted by ascending ETX. The first band is
// always present. Whenever a node's ETX exceeds the next boundary, all
// boundaries it exceeds are passed and a new band is started. Nodes
// without a primary host name or hidden nodes are skipped and do not
// affect the bands.
func Render(s *m.Snapshot, opts Options) *View {
	thresholds := opts.Thresholds
	if len(thresholds) == 0 {
		thresholds = m.DefaultThresholds
	}
	thresholds = thresholds.WithOverflow()
	if opts.LocalDomain == "" {
		opts.LocalDomain = m.DefaultLocalDomain
	}

	v := &View{}
	current := 0
	block := v.addBlock(thresholds[current])
	for _, entry := range s.ETX {
		if isHidden(opts.Hidden, entry.Node) {
			continue
		}
		hostname, ok := s.PrimaryHostname(entry.Node)
		if !ok {
			continue
		}

		// Pass all exceeded boundaries.
		if current+1 < len(thresholds) && entry.ETX > thresholds[current+1] {
			for current+1 < len(thresholds) && entry.ETX > thresholds[current+1] {
				current++
			}
			block = v.addBlock(thresholds[current])
		}

		block.Nodes = append(block.Nodes, v.renderNode(s, entry, hostname, opts))
	}

	return v
}

func isHidden(hidden *netipx.IPSet, node string) bool {
	if hidden == nil {
		return false
	}
	ip, err := netip.ParseAddr(node)
	if err != nil {
		return false
	}
	return hidden.Contains(ip.Unmap())
}

func (v *View) addBlock(threshold float64) *Block {
	b := &Block{
		Threshold: threshold,
	}
	v.Blocks = append(v.Blocks, b)
	return b
}

func (v *View) renderNode(s *m.Snapshot, entry m.ETXEntry, hostname string, opts Options) *Node {
	id := "n" + strconv.Itoa(v.nodeCnt)
	v.nodeCnt++

	n := &Node{
		ID:        id,
		Node:      entry.Node,
		Hostname:  m.DisplayHostname(hostname),
		Link:      m.HostLink(hostname, opts.LocalDomain),
		ETX:       entry.ETX,
		SearchKey: filter.MakeKey(m.DisplayHostname(hostname), entry.Node),
	}
	v.addTarget(n.ID, n.SearchKey)
	n.Services = v.renderServices(s.Services[entry.Node], id, hostname, opts)

	for i, lan := range s.LANHosts(entry.Node) {
		lanID := id + "-l" + strconv.Itoa(i)
		lh := &LANHost{
			ID:        lanID,
			Hostname:  m.DisplayHostname(lan.Name),
			SearchKey: filter.MakeKey(m.DisplayHostname(lan.Name)),
		}
		v.addTarget(lh.ID, lh.SearchKey)
		lh.Services = v.renderServices(s.Services[entry.Node], lanID, lan.Name, opts)
		n.LANHosts = append(n.LANHosts, lh)
	}

	return n
}

// renderServices returns the services whose URL points to the given host.
// Services with malformed URLs are skipped.
func (v *View) renderServices(services []m.Service, parentID, hostname string, opts Options) []*Service {
	var (
		display  = m.DisplayHostname(hostname)
		rendered []*Service
	)
	for _, svc := range services {
		u, err := m.ParseServiceURL(svc.URL)
		if err != nil {
			continue
		}
		if !u.HostIs(hostname) && !u.HostIs(display) {
			continue
		}

		rs := &Service{
			ID:        parentID + "-s" + strconv.Itoa(len(rendered)),
			Name:      svc.Name,
			SearchKey: filter.MakeKey(svc.Name),
		}
		if u.Linkable() {
			rs.Link = u.Link(opts.LocalDomain)
		}
		v.addTarget(rs.ID, rs.SearchKey)
		rendered = append(rendered, rs)
	}
	return rendered
}

func (v *View) addTarget(id, key string) {
	v.targets = append(v.targets, filter.Target{
		ID:  id,
		Key: key,
	})
}
