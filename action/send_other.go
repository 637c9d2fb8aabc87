//go:build !linux

package action

func prepareKeystroke(keystroke) (func() error, error) {
	return nil, ErrSendUnsupported
}
