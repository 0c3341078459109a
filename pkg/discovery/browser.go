package discovery

// ServiceEntry is raw mDNS service entry data, decoupled from the
// underlying mDNS library so entries can be parsed and tested without
// network access.
type ServiceEntry struct {
	// Instance is the mDNS instance name.
	Instance string

	// HostName is the advertised hostname.
	HostName string

	// Port is the advertised port.
	Port uint16

	// Text is the raw TXT record in "key=value" form.
	Text []string

	// Addresses are the entry's IP addresses as strings.
	Addresses []string
}

// ToPeerService parses the entry into a PeerService.
func (e *ServiceEntry) ToPeerService() (*PeerService, error) {
	info, err := DecodePeerTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}

	svc := &PeerService{
		InstanceName: e.Instance,
		Host:         e.HostName,
		Port:         e.Port,
		Addresses:    e.Addresses,
		PeerInfo:     *info,
	}
	// The advertised port is authoritative when the TXT carries none.
	if svc.PeerInfo.Port == 0 {
		svc.PeerInfo.Port = e.Port
	}
	return svc, nil
}
