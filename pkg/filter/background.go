package filter

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"mibitools/internal/models"
	"mibitools/pkg/errs"
	"mibitools/pkg/panel"
)

// BackgroundMask previews slide background removal: wherever the background
// channel counts reach threshold, every channel of the returned stack is zero.
func BackgroundMask(stack *models.Stack, selector string, threshold float64) (*models.Stack, error) {
	bg, err := stack.Channel(selector)
	if err != nil {
		return nil, errors.Wrap(err, "background channel")
	}

	rows, cols := stack.Dims()
	chs := stack.Channels()
	for k, ch := range chs {
		out := mat.DenseCopyOf(ch.Data)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				if bg.Data.At(i, j) >= threshold {
					out.Set(i, j, 0)
				}
			}
		}
		chs[k] = ch.WithData(out, ch.Target, DerivedBackground)
	}
	return models.NewStack(stack.Metadata, chs)
}

// ApplyIsobaric subtracts coefficient x donor counts from each recipient
// present in the stack, clamping at zero. Corrected channels are appended as
// <target>_corrected. Corrections whose recipient is absent or already
// corrected are ignored, an absent donor is an error.
func ApplyIsobaric(stack *models.Stack, corrections []panel.Correction) (*models.Stack, error) {
	var order []float64
	byRecipient := map[float64][]panel.Correction{}
	for _, c := range corrections {
		recipient, ok := stack.ChannelByMass(c.RecipientMass)
		if !ok {
			continue
		}
		if _, err := stack.Channel(correctedLabel(recipient)); err == nil {
			continue
		}
		if _, seen := byRecipient[c.RecipientMass]; !seen {
			order = append(order, c.RecipientMass)
		}
		byRecipient[c.RecipientMass] = append(byRecipient[c.RecipientMass], c)
	}

	var corrected []models.Channel
	for _, mass := range order {
		recipient, _ := stack.ChannelByMass(mass)
		out := mat.DenseCopyOf(recipient.Data)

		for _, c := range byRecipient[mass] {
			donor, ok := stack.ChannelByMass(c.DonorMass)
			if !ok {
				return nil, errors.Wrapf(errs.ErrChannelNotFound, "donor mass %s for %s", models.FormatMass(c.DonorMass), recipient.Label())
			}
			var scaled mat.Dense
			scaled.Scale(c.Coefficient, donor.Data)
			out.Sub(out, &scaled)
		}
		out.Apply(func(_, _ int, v float64) float64 { return max(v, 0) }, out)

		corrected = append(corrected, recipient.WithData(out, correctedLabel(recipient), DerivedIsobaric))
	}
	return stack.With(corrected...)
}

func correctedLabel(ch models.Channel) string {
	return ch.Label() + "_corrected"
}
