//go:build !linux && !darwin

package asyncio

func closeFD(int) error { return ErrUnsupportedPlatform }

func readFD(int, []byte) (int, error) { return 0, ErrUnsupportedPlatform }

func writeFD(int, []byte) (int, error) { return 0, ErrUnsupportedPlatform }
