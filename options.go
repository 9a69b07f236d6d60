package gnrf

import (
	"errors"
	"time"
)

// The device needs 1.5ms to reach standby from power down.
const defaultPowerUpDelay = 2 * time.Millisecond

// Option configures a Receiver.
type Option func(*Receiver) error

// WithPowerUpDelay sets how long Listen waits after powering the device up.
// Zero disables the wait.
func WithPowerUpDelay(d time.Duration) Option {
	return func(r *Receiver) error {
		if d < 0 {
			return errors.New("negative power up delay")
		}
		r.powerUpDelay = d
		return nil
	}
}
