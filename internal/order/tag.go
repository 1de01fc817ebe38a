package order

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Tag derives the suffix that keeps orders of the same item with different
// options apart: bundle, radar orbit, resolution variant and projection,
// then an MD5 of the AOI, joined with "-" behind a leading "_".
func Tag(bundle string, radar *RadarBundle, coordinates [][][]float64) string {
	var parts []string
	if bundle != "" {
		parts = append(parts, bundle)
	}
	if radar != nil {
		for _, v := range []string{radar.Orbit, radar.ResolutionVariant, radar.Projection} {
			if v != "" {
				parts = append(parts, v)
			}
		}
	}
	if len(coordinates) > 0 {
		parts = append(parts, coordinatesDigest(coordinates))
	}
	if len(parts) == 0 {
		return ""
	}
	return "_" + strings.Join(parts, "-")
}

func coordinatesDigest(coordinates [][][]float64) string {
	data, err := json.Marshal(coordinates)
	if err != nil {
		data = []byte(fmt.Sprint(coordinates))
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
