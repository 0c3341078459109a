package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodePeerTXT creates TXT records for a peer advertisement.
func EncodePeerTXT(info *PeerInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	// Required fields
	txt[TXTKeyPeerID] = info.PeerID
	txt[TXTKeyVersion] = strconv.FormatUint(uint64(info.Version), 10)

	// Optional fields
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}
	if info.RequiresAuth {
		txt[TXTKeyAuth] = "1"
	}

	return txt
}

// DecodePeerTXT parses TXT records from a peer advertisement.
func DecodePeerTXT(txt TXTRecordMap) (*PeerInfo, error) {
	info := &PeerInfo{}

	// Parse peer ID (required)
	var ok bool
	info.PeerID, ok = txt[TXTKeyPeerID]
	if !ok || info.PeerID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyPeerID)
	}

	// Parse version (required)
	vStr, ok := txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	v, err := strconv.ParseUint(vStr, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid version %q", ErrInvalidTXTRecord, vStr)
	}
	info.Version = uint8(v)

	// Optional fields
	info.Name = txt[TXTKeyName]
	info.RequiresAuth = txt[TXTKeyAuth] == "1"

	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value" strings.
// This format is commonly used by mDNS libraries.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
