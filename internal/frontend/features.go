package frontend

// Feature is a media player capability bit, numbered like the hub's
// media player feature flags.
type Feature int

const (
	FeaturePause         Feature = 1
	FeatureSeek          Feature = 2
	FeatureVolumeSet     Feature = 4
	FeatureVolumeMute    Feature = 8
	FeaturePreviousTrack Feature = 16
	FeatureNextTrack     Feature = 32
	FeatureTurnOn        Feature = 128
	FeatureTurnOff       Feature = 256
	FeatureVolumeStep    Feature = 1024
	FeatureStop          Feature = 4096
	FeaturePlay          Feature = 16384
)

const (
	baseFeatures = FeaturePause | FeaturePreviousTrack | FeatureNextTrack |
		FeaturePlay | FeatureStop | FeatureSeek | FeatureTurnOff

	volumeFeatures = FeatureVolumeStep | FeatureVolumeMute | FeatureVolumeSet
)

// Has reports whether all bits of x are set
func (f Feature) Has(x Feature) bool {
	return f&x == x
}

func supportedFeatures(hasMAC, volumeControl bool) Feature {
	features := baseFeatures
	if hasMAC {
		features |= FeatureTurnOn
	}
	if volumeControl {
		features |= volumeFeatures
	}
	return features
}
