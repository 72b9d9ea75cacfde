package observability

var WriteFatalForTest = writeFatal
