package handler

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"

	"langarhall/internal/logger"
	"langarhall/internal/service/monitor"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// maxFrameSize bounds a single uploaded or reassembled frame.
const maxFrameSize = 8 << 20

// UDPCameraHandler listens for UDP packets from network cameras, reconstructs
// JPEG frames per sender and feeds complete frames to the monitor. It returns
// when ctx is cancelled.
func UDPCameraHandler(ctx context.Context, mon *monitor.Monitor, logger *logger.Logger, port int) error {
	conn, err := net.ListenPacket("udp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	return ServeUDPCameras(ctx, conn, mon, logger)
}

// ServeUDPCameras reads camera packets from conn until ctx is cancelled.
func ServeUDPCameras(ctx context.Context, conn net.PacketConn, mon *monitor.Monitor, logger *logger.Logger) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("UDP Camera handler started on %s", conn.LocalAddr())
	buffer := make([]byte, 2048)
	cameraBuffers := make(map[string]*bytes.Buffer)

	for {
		n, remoteAddr, err := conn.ReadFrom(buffer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		sender := remoteAddr.String()
		data := buffer[:n]
		if _, ok := cameraBuffers[sender]; !ok {
			cameraBuffers[sender] = new(bytes.Buffer)
		}
		imgBuffer := cameraBuffers[sender]

		if bytes.HasPrefix(data, jpegHeader) {
			imgBuffer.Reset()
		} else if imgBuffer.Len() == 0 {
			// middle of a frame whose start we missed
			continue
		}
		if imgBuffer.Len()+n > maxFrameSize {
			logger.Warning("Frame from %s too large, dropping", sender)
			imgBuffer.Reset()
			continue
		}
		imgBuffer.Write(data)

		if bytes.HasSuffix(data, jpegFooter) {
			fullFrame := make([]byte, imgBuffer.Len())
			copy(fullFrame, imgBuffer.Bytes())
			imgBuffer.Reset()
			if err := mon.HandleFrame(ctx, fullFrame); err != nil {
				return nil
			}
		}
	}
}

// CameraUploadHandler accepts a single JPEG frame in the request body.
func CameraUploadHandler(mon *monitor.Monitor, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxFrameSize+1))
		if err != nil {
			logger.Error("Error reading body: %v", err)
			http.Error(w, "Error reading body", http.StatusBadRequest)
			return
		}
		if len(body) == 0 || len(body) > maxFrameSize {
			http.Error(w, "Invalid content length", http.StatusBadRequest)
			return
		}

		if err := mon.HandleFrame(r.Context(), body); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	}
}
