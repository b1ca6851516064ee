// Package discovery finds devices that are running a SoftAP provisioning
// session. Sessions advertise the "_zubprov._tcp" mDNS service under their
// SoftAP name (prefix, underscore, six hex digits of the MAC) with TXT
// records "sec" (1 when a proof of possession is required) and "id" (the
// session ID).
//
// # Usage Example
//
//	devices, err := discovery.ScanForDevices(5 * time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, d := range devices {
//	    fmt.Println(d, d.BaseURL())
//	}
//
// # Network Requirements
//
// The scanning host must share a link with the device, usually by joining
// its SoftAP, and allow mDNS (UDP port 5353).
package discovery
