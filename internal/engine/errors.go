package engine

import "net/http"

// StateError reports a queue operation rejected by the state machine. The
// code is the HTTP status the handlers relay; the message is shown to the
// end user verbatim.
type StateError struct {
	Code    int
	Message string
}

func (e *StateError) Error() string { return e.Message }

func stateErr(code int, msg string) *StateError {
	return &StateError{Code: code, Message: msg}
}

// Rejections reused across operations.
var (
	ErrQueueEmpty = stateErr(http.StatusNotFound, "Antrean sedang kosong.")

	ErrAlreadyQueued = stateErr(http.StatusBadRequest, "Anda sudah memiliki antrean aktif.")

	ErrEventFull = stateErr(http.StatusForbidden, "Gagal! Kuota pendaftaran sudah penuh.")

	ErrNoSchool = stateErr(http.StatusForbidden,
		"Gagal: Anda tidak terdaftar di sekolah manapun.")

	ErrWrongSchool = stateErr(http.StatusForbidden,
		"Gagal: Anda bukan anggota sekolah penyelenggara ini.")

	ErrSessionNotStarted = stateErr(http.StatusBadRequest,
		"Gagal! Sesi pelayanan belum dimulai (Masih masa Pre-Order).")

	ErrSessionEnded = stateErr(http.StatusBadRequest,
		"Gagal! Sesi pelayanan untuk kegiatan ini sudah berakhir.")

	ErrSessionOver = stateErr(http.StatusForbidden,
		"Sesi sudah berakhir, tidak bisa memanggil lagi.")

	ErrNotLocked = stateErr(http.StatusForbidden,
		"Kunci pendaftaran atau tutup sesi terlebih dahulu sebelum mulai memanggil pendaftar.")

	ErrEventMustBeLocked = stateErr(http.StatusForbidden, "Event harus dikunci.")

	ErrCounterBusy = stateErr(http.StatusConflict,
		"Sistem sibuk, silakan klik daftar kembali.")

	ErrPostponeOnlyWaiting = stateErr(http.StatusBadRequest,
		"Hanya status MENUNGGU yang bisa tunda.")

	ErrPostponeAlreadyHandled = stateErr(http.StatusBadRequest,
		"Request tidak valid atau sudah diproses")

	ErrNoActiveEntry = stateErr(http.StatusNotFound,
		"Tidak ada antrean aktif untuk dibatalkan.")

	ErrTicketInvalid = stateErr(http.StatusUnauthorized,
		"QR Code kedaluwarsa atau tidak valid")
)
