//go:build !linux && !darwin

package asyncio

const (
	EFD_CLOEXEC  = 0
	EFD_NONBLOCK = 0
)

func createWakeFd(uint, int) (int, int, error) {
	return -1, -1, ErrUnsupportedPlatform
}
