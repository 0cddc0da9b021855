//go:build !unix

package workspace

import "errors"

func chownTree(string, int, int) error {
	return errors.New("ownership change is not supported on this platform")
}
