package client

import (
	"fmt"
	"github.com/ValentinKolb/dSync/lib/transfer"
	"github.com/ValentinKolb/dSync/lib/world"
	"github.com/ValentinKolb/dSync/rpc/common"
)

// toStep converts a transfer message from the server into a controller step
func toStep(m *common.TransferMessage) (transfer.Step, error) {
	var mode transfer.StepMode
	switch m.StepMode {
	case common.TransferSend:
		mode = transfer.StepSend
	case common.TransferReceive:
		mode = transfer.StepReceive
	case common.TransferAccept:
		mode = transfer.StepAccept
	case common.TransferReject:
		mode = transfer.StepReject
	default:
		return transfer.Step{}, fmt.Errorf("unsupported transfer step %s", m.StepMode)
	}
	return transfer.Step{
		Mode:                mode,
		ID:                  m.TransferID,
		OriginLocation:      m.OriginLocation,
		DestinationLocation: m.DestinationLocation,
		UnitPayload:         m.UnitPayload,
	}, nil
}

// fromStep converts a controller step into a transfer message for the server
func fromStep(step transfer.Step) (*common.Message, error) {
	var mode common.TransferStepMode
	switch step.Mode {
	case transfer.StepSend:
		mode = common.TransferSend
	case transfer.StepReceive:
		mode = common.TransferReceive
	case transfer.StepAccept:
		mode = common.TransferAccept
	case transfer.StepReject:
		mode = common.TransferReject
	default:
		return nil, fmt.Errorf("unsupported transfer step %s", step.Mode)
	}
	return common.NewTransferMessage(mode, step.ID, step.OriginLocation, step.DestinationLocation, step.UnitPayload), nil
}

// toViews converts projected claims into replica views
func toViews(entries []common.ClaimEntry) []world.ClaimView {
	views := make([]world.ClaimView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toView(e))
	}
	return views
}

func toView(e common.ClaimEntry) world.ClaimView {
	return world.ClaimView{
		Location:          e.Location,
		Owner:             e.Owner,
		RelationshipScore: e.RelationshipScore,
	}
}
