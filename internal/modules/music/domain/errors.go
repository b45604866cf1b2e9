package domain

import "errors"

// Domain errors for the music module.
var (
	// ErrResolution is returned when a query or link cannot be resolved to a track.
	ErrResolution = errors.New("could not resolve the query to a track")

	// ErrDownload is returned when fetching the audio payload fails after all retries.
	ErrDownload = errors.New("failed to download the track")

	// ErrQueueFull is returned when enqueueing would exceed the queue capacity.
	ErrQueueFull = errors.New("the queue is full")

	// ErrTrackTooLong is returned when a track exceeds the configured duration limit.
	ErrTrackTooLong = errors.New("the track exceeds the maximum allowed duration")

	// ErrVoiceConnection is returned when the voice connection cannot be
	// established or maintained.
	ErrVoiceConnection = errors.New("voice connection failed")

	// ErrPlayback is returned when the audio stream faults during playback.
	ErrPlayback = errors.New("playback failed")

	// ErrNotConnected is returned when an operation requires an active voice session.
	ErrNotConnected = errors.New("not connected to a voice channel")

	// ErrUserNotInVoice is returned when the invoking user is not in the bot's
	// voice channel.
	ErrUserNotInVoice = errors.New("you must be in the bot's voice channel")

	// ErrNotPlaying is returned when no track is currently playing.
	ErrNotPlaying = errors.New("nothing is currently playing")

	// ErrAlreadyPaused is returned when trying to pause while already paused.
	ErrAlreadyPaused = errors.New("playback is already paused")

	// ErrNotPaused is returned when trying to resume while not paused.
	ErrNotPaused = errors.New("playback is not paused")

	// ErrInvalidPosition is returned when a queue position is out of range.
	ErrInvalidPosition = errors.New("invalid queue position")

	// ErrInvalidVolume is returned when a volume is outside the allowed range.
	ErrInvalidVolume = errors.New("volume out of range")

	// ErrNotEnoughTracks is returned when an operation needs more queued
	// tracks than are present (e.g. shuffling fewer than two entries).
	ErrNotEnoughTracks = errors.New("not enough tracks in the queue")

	// ErrNoResults is returned when a search yields no results.
	ErrNoResults = errors.New("no results found")

	// ErrPlayerStopped is returned when an operation targets a player that
	// has already been torn down.
	ErrPlayerStopped = errors.New("the player has been stopped")
)
