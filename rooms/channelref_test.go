package rooms

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"roomkit/contract"
	"roomkit/errors"
	"roomkit/mocks"
)

func Test_ChannelRef_AttachesOnFirstInterestOnly(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	channelMock := mocks.NewMockRealtimeChannel(ctrl)

	// Given a channel expecting exactly one attach and one detach
	channelMock.EXPECT().Attach(gomock.Any()).Return(nil).Times(1)
	channelMock.EXPECT().Detach(gomock.Any()).Return(nil).Times(1)

	ref := newChannelRef(channelMock, discardLogger())

	// When three features acquire interest and withdraw in turn
	req.NoError(ref.AcquireInterest(context.Background(), "messages"))
	req.NoError(ref.AcquireInterest(context.Background(), "presence"))
	req.NoError(ref.AcquireInterest(context.Background(), "typing"))

	req.NoError(ref.ReleaseInterest(context.Background(), "messages"))
	req.NoError(ref.ReleaseInterest(context.Background(), "presence"))

	// Then only the last withdrawal detaches
	req.NoError(ref.ReleaseInterest(context.Background(), "typing"))
}

func Test_ChannelRef_FailedAttachRollsBackInterest(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	channelMock := mocks.NewMockRealtimeChannel(ctrl)

	// Given a transport whose first attach fails and second succeeds
	gomock.InOrder(
		channelMock.EXPECT().Attach(gomock.Any()).Return(fmt.Errorf("transport down")),
		channelMock.EXPECT().Attach(gomock.Any()).Return(nil),
	)

	ref := newChannelRef(channelMock, discardLogger())

	// When the first acquisition fails
	err := ref.AcquireInterest(context.Background(), "messages")
	req.Error(err)
	req.Equal(errors.KindTransport, errors.KindOf(err))

	// Then the interest count rolled back, so the retry attaches again
	req.NoError(ref.AcquireInterest(context.Background(), "messages"))
}

func Test_ChannelRef_ReleaseWithoutInterestIsNoop(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	channelMock := mocks.NewMockRealtimeChannel(ctrl)

	ref := newChannelRef(channelMock, discardLogger())

	// No Detach expectation: withdrawing an unknown interest must not
	// touch the transport.
	req.NoError(ref.ReleaseInterest(context.Background(), "messages"))
}

func Test_ChannelRef_DetachAllClearsEveryInterest(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	channelMock := mocks.NewMockRealtimeChannel(ctrl)

	channelMock.EXPECT().Attach(gomock.Any()).Return(nil).Times(1)
	channelMock.EXPECT().Detach(gomock.Any()).Return(nil).Times(1)

	ref := newChannelRef(channelMock, discardLogger())
	req.NoError(ref.AcquireInterest(context.Background(), "messages"))
	req.NoError(ref.AcquireInterest(context.Background(), "presence"))

	// When the room detaches everything at once
	req.NoError(ref.DetachAll(context.Background()))

	// Then a later withdrawal by a feature finds nothing to release
	req.NoError(ref.ReleaseInterest(context.Background(), "messages"))
}

func Test_ChannelRef_CloseIsTerminal(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	channelMock := mocks.NewMockRealtimeChannel(ctrl)

	channelMock.EXPECT().Attach(gomock.Any()).Return(nil).Times(1)
	channelMock.EXPECT().State().Return(contract.ChannelAttached).Times(1)
	channelMock.EXPECT().Detach(gomock.Any()).Return(nil).Times(1)

	ref := newChannelRef(channelMock, discardLogger())
	req.NoError(ref.AcquireInterest(context.Background(), "messages"))

	req.NoError(ref.Close(context.Background()))

	// Acquisitions and publishes after close are rejected.
	err := ref.AcquireInterest(context.Background(), "messages")
	req.Equal(errors.KindRoomIsReleased, errors.KindOf(err))
	err = ref.Publish(context.Background(), "chat.message.create", []byte("{}"))
	req.Equal(errors.KindRoomIsReleased, errors.KindOf(err))

	// A second close is a no-op.
	req.NoError(ref.Close(context.Background()))
}
