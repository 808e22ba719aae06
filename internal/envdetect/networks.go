package envdetect

import (
	"net"
)

type Network struct {
	Interface string     `json:"interface"`
	CIDR      string     `json:"cidr"`
	SrcIP     string     `json:"src_ip"`
	Net       *net.IPNet `json:"-"`
}

// DetectLocalNetworks lists the networks of every interface that is up.
// IPv6 is included unless ipv4Only is set.
func DetectLocalNetworks(ipv4Only bool) ([]Network, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var nets []Network
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ipv4Only && ipnet.IP.To4() == nil {
				continue
			}
			network := &net.IPNet{IP: ipnet.IP.Mask(ipnet.Mask), Mask: ipnet.Mask}
			nets = append(nets, Network{
				Interface: ifc.Name,
				CIDR:      network.String(),
				SrcIP:     ipnet.IP.String(),
				Net:       network,
			})
		}
	}
	return nets, nil
}
