package update

// IsDeviceInRolloutBucket decides whether a device is inside a staged
// rollout. The bucket comes from a simple rolling hash of the device id:
// acc = (acc*31 + charCode) mod 1000 per character, bucket = acc mod
// 100. The hash is deliberately not cryptographic and not perfectly
// uniform; it is frozen because changing it would reshuffle which
// devices are offered an in-flight rollout.
func IsDeviceInRolloutBucket(deviceID string, percentage int) bool {
	if percentage >= 100 {
		return true
	}
	if percentage <= 0 || deviceID == "" {
		return false
	}
	acc := 0
	for _, c := range deviceID {
		acc = (acc*31 + int(c)) % 1000
	}
	return acc%100 < percentage
}
