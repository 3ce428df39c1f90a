package hub

import (
	"fmt"
	"io"
)

// Status dump banners written to the debug buffer.
const (
	StatusBeginBanner = "===== sensor status begin =====\n"
	StatusEndBanner   = "===== sensor status end =====\n"
)

var linkRoles = [...]string{
	LinkClient:   "client",
	LinkMonitor:  "monitor",
	LinkReporter: "reporter",
}

func linkRole(t uint8) string {
	if int(t) < len(linkRoles) {
		return linkRoles[t]
	}
	return fmt.Sprintf("role-%d", t)
}

// FormatSensorInfo writes the multi-line rendering of s. Link peers are
// resolved through reg.
func FormatSensorInfo(w io.Writer, reg *Registry, s *SensorInfo) error {
	_, err := fmt.Fprintf(w,
		"sensor %-5s id=%d status=0x%02x health=%d\n"+
			"  freq=%d freq_max=%d data_cnt=%d priv=0x%04x attri=0x%04x\n",
		s.Name, s.ID, s.Status, s.Health,
		s.Freq, s.FreqMax, s.DataCnt, s.Priv, s.Attri)
	if err != nil {
		return err
	}
	for _, l := range s.Links {
		_, err = fmt.Fprintf(w, "  link %-8s %-5s(%3d) slide=%d\n",
			linkRole(l.Type), reg.Lookup(l.ID), l.ID, l.Slide)
		if err != nil {
			return err
		}
	}
	return nil
}
