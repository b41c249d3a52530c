package attendance

import "fmt"

// The remote page gives no signal when it reloads by itself. The listener armed after every
// navigation flags a reload in sessionStorage; a page that lost the armed marker was reloaded too.
const (
	armScript = `(function () {
	try { sessionStorage.removeItem('diemdanh_reloaded'); } catch (e) {}
	window.addEventListener('beforeunload', function () {
		try { sessionStorage.setItem('diemdanh_reloaded', '1'); } catch (e) {}
	});
	window.__diemdanhArmed = true;
	return true;
})()`

	probeScript = `(function () {
	if (window.__diemdanhArmed !== true) { return true; }
	try { return sessionStorage.getItem('diemdanh_reloaded') === '1'; } catch (e) { return false; }
})()`
)

func zoomScript(zoom string) string {
	return fmt.Sprintf("document.body.style.zoom=%q", zoom)
}
