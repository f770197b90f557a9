package pipeline

import (
	"time"

	"github.com/lumenlend/tvlscan/internal/config"
)

// batchOutcome classifies how the controller reacted to a batch.
type batchOutcome string

const (
	outcomeAggressive   batchOutcome = "aggressive_slowdown"
	outcomeModerate     batchOutcome = "moderate_slowdown"
	outcomeSpeedUp      batchOutcome = "speed_up"
	outcomeStable       batchOutcome = "stable"
	outcomeRecoveryExit batchOutcome = "recovery_exit"
	outcomeIdle         batchOutcome = "idle"
)

// batchController is the additive-increase/additive-decrease feedback loop
// that paces the main fetch pass. It slows down fast on trouble, speeds up
// only after sustained calm, and uses asymmetric hysteresis: two consecutive
// clean batches earn a speed-up in normal operation, but three are required
// to leave recovery mode once a batch has gone badly. State is local to one
// pipeline run.
type batchController struct {
	cfg config.TuningConfig

	batchSize            int
	delayMS              int
	consecutiveSuccesses int
	consecutiveFailures  int
	recoveryMode         bool
}

func newBatchController(cfg config.TuningConfig) *batchController {
	return &batchController{
		cfg:       cfg,
		batchSize: cfg.InitialBatchSize,
		delayMS:   cfg.InitialDelayMS,
	}
}

// delay returns the current inter-batch pause.
func (c *batchController) delay() time.Duration {
	return time.Duration(c.delayMS) * time.Millisecond
}

// observe feeds one batch result (successes out of batchLen records) into
// the controller and adjusts batch size and pacing for the next batch.
func (c *batchController) observe(successes, batchLen int) batchOutcome {
	failures := batchLen - successes

	var successRate, failureFraction float64
	if batchLen > 0 {
		successRate = float64(successes) / float64(batchLen)
		failureFraction = float64(failures) / float64(batchLen)
	}

	switch {
	case failures > 0 && (failureFraction > c.cfg.AggressiveFailureFraction || successRate < c.cfg.AggressiveSuccessRate):
		// The service is pushing back hard. Shrink and slow aggressively and
		// enter recovery mode.
		c.batchSize = maxInt(c.batchSize-c.cfg.AggressiveSizeStep, c.cfg.MinBatchSize)
		c.delayMS = minInt(c.delayMS+c.cfg.AggressiveDelayStepMS, c.cfg.MaxDelayMS)
		c.recoveryMode = true
		c.consecutiveSuccesses = 0
		c.consecutiveFailures++
		return outcomeAggressive

	case failures > 0:
		// Isolated failures above the aggressive thresholds: back off gently.
		c.batchSize = maxInt(c.batchSize-c.cfg.ModerateSizeStep, c.cfg.ModerateSizeFloor)
		c.delayMS = minInt(c.delayMS+c.cfg.ModerateDelayStepMS, c.cfg.MaxDelayMS)
		return outcomeModerate

	case successRate >= c.cfg.SpeedUpSuccessRate:
		c.consecutiveSuccesses++
		c.consecutiveFailures = 0

		if c.recoveryMode {
			if c.consecutiveSuccesses >= c.cfg.RecoveryExitAfter {
				// Calm has held long enough; leave recovery. The clean-batch
				// streak restarts so a speed-up still needs fresh evidence.
				c.recoveryMode = false
				c.consecutiveSuccesses = 0
				return outcomeRecoveryExit
			}
			return outcomeStable
		}

		if c.consecutiveSuccesses >= c.cfg.SpeedUpAfter {
			c.batchSize = minInt(c.batchSize+c.cfg.SpeedUpSizeStep, c.cfg.MaxBatchSize)
			c.delayMS = maxInt(c.delayMS-c.cfg.SpeedUpDelayStepMS, c.cfg.MinDelayMS)
			return outcomeSpeedUp
		}
		return outcomeStable

	case successRate >= c.cfg.StabilitySuccessRate:
		// Stability band: count the calm but change nothing.
		c.consecutiveSuccesses++
		c.consecutiveFailures = 0
		return outcomeStable

	default:
		// No failures yet sub-threshold success rate: only an empty batch
		// lands here. Reset the clean streak, leave the failure streak alone.
		c.consecutiveSuccesses = 0
		return outcomeIdle
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
