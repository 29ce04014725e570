// profiles.go - Named resolution profiles passed per call to the engine

package ai

import "sort"

// DefaultProfileName is used when a request does not name a profile.
const DefaultProfileName = "gundam"

// ResolutionProfile is an immutable combination of tile size, working size and crop mode.
type ResolutionProfile struct {
	Name      string `json:"name" bson:"name"`
	BaseSize  int    `json:"base_size" bson:"base_size"`
	ImageSize int    `json:"image_size" bson:"image_size"`
	CropMode  bool   `json:"crop_mode" bson:"crop_mode"`
}

var resolutionProfiles = map[string]ResolutionProfile{
	"tiny":   {Name: "tiny", BaseSize: 512, ImageSize: 512, CropMode: false},
	"small":  {Name: "small", BaseSize: 640, ImageSize: 640, CropMode: false},
	"base":   {Name: "base", BaseSize: 1024, ImageSize: 1024, CropMode: false},
	"large":  {Name: "large", BaseSize: 1280, ImageSize: 1280, CropMode: false},
	"gundam": {Name: "gundam", BaseSize: 1024, ImageSize: 640, CropMode: true},
}

// LookupProfile returns a copy of the named profile.
func LookupProfile(name string) (ResolutionProfile, bool) {
	p, ok := resolutionProfiles[name]
	return p, ok
}

// ProfileNames lists the known profile names in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(resolutionProfiles))
	for name := range resolutionProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
